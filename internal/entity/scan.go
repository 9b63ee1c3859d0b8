package entity

import "time"

type Scan struct {
	ID          string           `json:"id"`
	FileName    string           `json:"file_name"`
	ImageURL    string           `json:"png_url"`
	Dimensions  *ImageDimensions `json:"image_dimensions"`
	Predictions []Detection      `json:"predictions"`
	Report      string           `json:"report"`
	CreatedAt   time.Time        `json:"created_at"`
}
