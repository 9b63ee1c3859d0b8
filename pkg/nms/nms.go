// Package nms filters overlapping detector output with greedy Non-Maximum
// Suppression.
package nms

import (
	"errors"
	"math"
	"sort"

	"DentoScan/internal/entity"
)

// Suppress runs greedy NMS over detections. Candidates are visited by
// confidence, highest first; equal confidences keep their input order. Each
// visited candidate is kept and every remaining candidate whose IoU with it is
// strictly greater than iouThreshold is discarded.
//
// The result holds unmodified input values in selection order. Suppress is
// pure and safe for concurrent use.
func Suppress(detections []entity.Detection, iouThreshold float64, opts ...Option) ([]entity.Detection, error) {
	if len(detections) == 0 {
		return []entity.Detection{}, nil
	}

	if math.IsNaN(iouThreshold) || iouThreshold < 0 || iouThreshold > 1 {
		return nil, ErrInvalidThreshold
	}

	o := options{degenerate: DegenerateClamp}
	for _, opt := range opts {
		opt(&o)
	}

	rects := make([]Rect, len(detections))
	candidates := make([]int, 0, len(detections))
	for i, d := range detections {
		if err := validate(i, d); err != nil {
			return nil, err
		}

		if d.Width <= 0 || d.Height <= 0 {
			switch o.degenerate {
			case DegenerateReject:
				return nil, &ValidationError{Index: i, Field: "width/height", Err: ErrDegenerateBox}
			case DegenerateSkip:
				continue
			}
		}

		rects[i] = RectOf(d)
		candidates = append(candidates, i)
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return detections[candidates[a]].Confidence > detections[candidates[b]].Confidence
	})

	kept := make([]entity.Detection, 0, len(candidates))
	for len(candidates) > 0 {
		current := candidates[0]
		kept = append(kept, detections[current])

		// Filter in place; the write index never passes the read index.
		remaining := candidates[:0]
		for _, idx := range candidates[1:] {
			if o.classAware && detections[idx].Class != detections[current].Class {
				remaining = append(remaining, idx)
				continue
			}
			if IoU(rects[current], rects[idx]) > iouThreshold {
				continue
			}
			remaining = append(remaining, idx)
		}
		candidates = remaining
	}

	return kept, nil
}

func validate(i int, d entity.Detection) error {
	if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
		return &ValidationError{Index: i, Field: "confidence", Err: ErrInvalidDetection}
	}

	geometry := []struct {
		name  string
		value float64
	}{
		{"x", d.X},
		{"y", d.Y},
		{"width", d.Width},
		{"height", d.Height},
	}
	for _, g := range geometry {
		if math.IsNaN(g.value) || math.IsInf(g.value, 0) {
			return &ValidationError{Index: i, Field: g.name, Err: ErrInvalidDetection}
		}
	}

	// Finite center and size can still overflow once turned into corners.
	if !RectOf(d).finite() {
		return &ValidationError{Index: i, Field: "geometry", Err: ErrInvalidDetection}
	}

	return nil
}

// IsValidationError reports whether err was caused by malformed input rather
// than an internal failure.
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr) || errors.Is(err, ErrInvalidThreshold)
}
