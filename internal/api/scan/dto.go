package scan

import "DentoScan/internal/entity"

// Upload is a radiograph as received from the client.
type Upload struct {
	FileName string
	Data     []byte
}

type PredictResponse struct {
	ScanID          string                  `json:"scan_id,omitempty"`
	Predictions     []entity.Detection      `json:"predictions"`
	PngURL          string                  `json:"png_url"`
	Report          string                  `json:"report"`
	ImageDimensions *entity.ImageDimensions `json:"image_dimensions"`
	Cached          bool                    `json:"cached,omitempty"`
}

type ScanResponse struct {
	ID              string                  `json:"id"`
	FileName        string                  `json:"file_name"`
	PngURL          string                  `json:"png_url"`
	ImageDimensions *entity.ImageDimensions `json:"image_dimensions"`
	Predictions     []entity.Detection      `json:"predictions"`
	Report          string                  `json:"report"`
	CreatedAt       string                  `json:"created_at"`
}

type ListScansQuery struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

type ScanListResponse struct {
	Scans []ScanResponse `json:"scans"`
	Total int            `json:"total"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type FileType string

const (
	FileTypeDICOM  FileType = "dicom"
	FileTypeRaster FileType = "raster"
)

// AllowedExtensions maps accepted upload extensions to how they are decoded.
// RVG is a vendor DICOM container.
var AllowedExtensions = map[string]FileType{
	"dcm":  FileTypeDICOM,
	"rvg":  FileTypeDICOM,
	"png":  FileTypeRaster,
	"jpg":  FileTypeRaster,
	"jpeg": FileTypeRaster,
}
