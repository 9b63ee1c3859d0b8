package nms

import (
	"math"

	"DentoScan/internal/entity"
)

// Rect is an axis-aligned box in corner form.
type Rect struct {
	X1, Y1, X2, Y2 float64
}

// RectOf converts a center/size detection into corner form. Negative
// dimensions are clamped to zero, collapsing the box onto its center.
func RectOf(d entity.Detection) Rect {
	w := math.Max(d.Width, 0)
	h := math.Max(d.Height, 0)

	return Rect{
		X1: d.X - w/2,
		Y1: d.Y - h/2,
		X2: d.X + w/2,
		Y2: d.Y + h/2,
	}
}

// finite reports whether every corner is a finite number.
func (r Rect) finite() bool {
	for _, v := range [...]float64{r.X1, r.Y1, r.X2, r.Y2} {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}

func (r Rect) Area() float64 {
	return math.Max(r.X2-r.X1, 0) * math.Max(r.Y2-r.Y1, 0)
}

// IoU returns the intersection over union of a and b. It is 0 for disjoint
// boxes and whenever the union has no area.
func IoU(a, b Rect) float64 {
	interW := math.Min(a.X2, b.X2) - math.Max(a.X1, b.X1)
	interH := math.Min(a.Y2, b.Y2) - math.Max(a.Y1, b.Y1)
	if interW <= 0 || interH <= 0 {
		return 0
	}

	inter := interW * interH
	union := a.Area() + b.Area() - inter
	if math.IsNaN(inter) || math.IsNaN(union) || union <= 0 {
		return 0
	}

	return inter / union
}
