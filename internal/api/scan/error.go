package scan

import (
	"DentoScan/pkg/response"
	"net/http"
)

var (
	ErrInvalidFileType     = response.NewError(http.StatusBadRequest, "Invalid file type. Only .dcm, .rvg, .png, .jpg, or .jpeg files are allowed.")
	ErrMissingFile         = response.NewError(http.StatusBadRequest, "No file uploaded")
	ErrFileTooLarge        = response.NewError(http.StatusBadRequest, "File too large")
	ErrInvalidQuery        = response.NewError(http.StatusBadRequest, "Invalid query parameters")
	ErrSaveFailed          = response.NewError(http.StatusInternalServerError, "Could not save file")
	ErrConversionFailed    = response.NewError(http.StatusInternalServerError, "Could not convert image to PNG")
	ErrInferenceFailed     = response.NewError(http.StatusInternalServerError, "Error during image analysis")
	ErrScanNotFound        = response.NewError(http.StatusNotFound, "Scan not found")
	ErrInternalServerError = response.NewError(http.StatusInternalServerError, "internal server error")
)
