package entity

// Detection is one bounding box predicted by the hosted detector. X and Y are
// the box center in image pixels.
type Detection struct {
	Class       string  `json:"class" validate:"required"`
	ClassID     int     `json:"class_id,omitempty"`
	DetectionID string  `json:"detection_id,omitempty"`
	Confidence  float64 `json:"confidence" validate:"gte=0,lte=1"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
}

type ImageDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}
