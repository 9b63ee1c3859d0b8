package nms

import "fmt"

// DegeneratePolicy decides what happens to boxes with zero or negative
// width or height.
type DegeneratePolicy int

const (
	// DegenerateClamp keeps the detection and treats its area as zero, so it
	// never overlaps anything.
	DegenerateClamp DegeneratePolicy = iota
	// DegenerateSkip drops the detection before suppression.
	DegenerateSkip
	// DegenerateReject fails the whole call with ErrDegenerateBox.
	DegenerateReject
)

func (p DegeneratePolicy) String() string {
	switch p {
	case DegenerateClamp:
		return "clamp"
	case DegenerateSkip:
		return "skip"
	case DegenerateReject:
		return "reject"
	default:
		return fmt.Sprintf("DegeneratePolicy(%d)", int(p))
	}
}

func ParseDegeneratePolicy(s string) (DegeneratePolicy, error) {
	switch s {
	case "", "clamp":
		return DegenerateClamp, nil
	case "skip":
		return DegenerateSkip, nil
	case "reject":
		return DegenerateReject, nil
	default:
		return DegenerateClamp, fmt.Errorf("unknown degenerate policy %q", s)
	}
}

type options struct {
	classAware bool
	degenerate DegeneratePolicy
}

type Option func(*options)

// WithClassAware restricts suppression to detections sharing the same class.
func WithClassAware() Option {
	return func(o *options) {
		o.classAware = true
	}
}

func WithDegeneratePolicy(p DegeneratePolicy) Option {
	return func(o *options) {
		o.degenerate = p
	}
}
