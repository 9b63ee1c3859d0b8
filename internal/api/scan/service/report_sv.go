package scanService

import (
	"DentoScan/internal/entity"
	contextPkg "DentoScan/pkg/context"
	"fmt"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"strings"
)

const noPathologiesReport = "No pathologies detected."

const reportPromptHeader = "You are a dental radiologist. Based on the image annotations provided below (which include detected pathologies), write a concise diagnostic report in clinical language.\n\nDetected Pathologies:\n"

const reportPromptFooter = "\nPlease provide a brief paragraph highlighting:\n1. Detected pathologies\n2. Location if possible (e.g., upper left molar)\n3. Clinical advice (optional)\n\nKeep the report professional and concise."

func (s *scanService) generateReport(ctx context.Context, predictions []entity.Detection) string {
	requestID := contextPkg.GetRequestID(ctx)

	if s.reporter == nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
		}).Warn("No report generator configured, using mock report")
		return mockReport(predictions)
	}

	if len(predictions) == 0 {
		return noPathologiesReport
	}

	text, err := s.reporter.GenerateText(ctx, buildPrompt(predictions))
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Error generating report with LLM")
		return mockReport(predictions)
	}

	if strings.TrimSpace(text) == "" {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
		}).Warn("LLM returned no text in the response")
		return mockReport(predictions)
	}

	return text
}

func buildPrompt(predictions []entity.Detection) string {
	var b strings.Builder
	b.WriteString(reportPromptHeader)
	for _, p := range predictions {
		fmt.Fprintf(&b, "- %s (Confidence: %.2f%%)\n", p.Class, p.Confidence*100)
	}
	b.WriteString(reportPromptFooter)

	return b.String()
}

func mockReport(predictions []entity.Detection) string {
	pathologies := "no pathologies"
	if len(predictions) > 0 {
		classes := make([]string, 0, len(predictions))
		for _, p := range predictions {
			classes = append(classes, p.Class)
		}
		pathologies = strings.Join(classes, ", ")
	}

	return "Mock Diagnostic Report:\nBased on the analysis of the dental X-ray, the following findings were observed: " +
		pathologies +
		".\n\nPlease consult with a dental professional for a complete evaluation and treatment plan."
}
