package scanService

import (
	"DentoScan/internal/entity"
	"errors"
	"strings"
	"testing"

	"golang.org/x/net/context"
)

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt([]entity.Detection{
		{Class: "caries", Confidence: 0.9512},
		{Class: "periapical lesion", Confidence: 0.4},
	})

	for _, want := range []string{
		"You are a dental radiologist.",
		"- caries (Confidence: 95.12%)\n",
		"- periapical lesion (Confidence: 40.00%)\n",
		"Keep the report professional and concise.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestMockReport(t *testing.T) {
	got := mockReport([]entity.Detection{{Class: "caries"}, {Class: "crown"}})
	if !strings.Contains(got, "findings were observed: caries, crown.") {
		t.Errorf("unexpected mock report %q", got)
	}

	got = mockReport(nil)
	if !strings.Contains(got, "findings were observed: no pathologies.") {
		t.Errorf("unexpected empty mock report %q", got)
	}
}

func TestGenerateReport(t *testing.T) {
	preds := []entity.Detection{{Class: "caries", Confidence: 0.9}}

	tests := []struct {
		name        string
		reporter    *fakeReporter
		predictions []entity.Detection
		want        string
		wantPrefix  string
	}{
		{
			name:        "generator text",
			reporter:    &fakeReporter{text: "Findings: caries."},
			predictions: preds,
			want:        "Findings: caries.",
		},
		{
			name:        "no predictions",
			reporter:    &fakeReporter{text: "unused"},
			predictions: nil,
			want:        noPathologiesReport,
		},
		{
			name:        "generator error",
			reporter:    &fakeReporter{err: errors.New("quota exceeded")},
			predictions: preds,
			wantPrefix:  "Mock Diagnostic Report:",
		},
		{
			name:        "blank text",
			reporter:    &fakeReporter{text: "  \n"},
			predictions: preds,
			wantPrefix:  "Mock Diagnostic Report:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.reporter)
			got := f.svc.(*scanService).generateReport(context.Background(), tt.predictions)

			if tt.want != "" && got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if tt.wantPrefix != "" && !strings.HasPrefix(got, tt.wantPrefix) {
				t.Errorf("got %q, want prefix %q", got, tt.wantPrefix)
			}
		})
	}
}
