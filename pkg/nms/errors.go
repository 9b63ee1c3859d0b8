package nms

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidThreshold = errors.New("iou threshold must be within [0, 1]")
	ErrInvalidDetection = errors.New("invalid detection")
	ErrDegenerateBox    = errors.New("degenerate bounding box")
)

// ValidationError reports which input detection was rejected and why.
type ValidationError struct {
	Index int
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("detection %d: %s: %v", e.Index, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
