package imageutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func solidImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{120, 120, 120, 255})
		}
	}
	return img
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data, err := EncodePNG(solidImage(40, 30))
	if err != nil {
		t.Fatalf("EncodePNG() error = %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Fatal("EncodePNG() did not produce a PNG")
	}

	img, err := Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	dims := Dimensions(img)
	if dims.Width != 40 || dims.Height != 30 {
		t.Errorf("Dimensions() = %+v, want 40x30", dims)
	}
}

func TestDecodeJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solidImage(16, 8), nil); err != nil {
		t.Fatalf("jpeg.Encode() error = %v", err)
	}

	img, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Errorf("decoded bounds = %v", b)
	}
}

func TestDecodeInvalid(t *testing.T) {
	if _, err := Decode(bytes.NewReader([]byte("dummy dicom data"))); err == nil {
		t.Error("expected error for non-image data")
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		maxSide int
		wantW   int
		wantH   int
	}{
		{"disabled", 300, 200, 0, 300, 200},
		{"already small", 300, 200, 512, 300, 200},
		{"landscape", 400, 200, 100, 100, 50},
		{"portrait", 200, 400, 100, 50, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fit(solidImage(tt.w, tt.h), tt.maxSide).Bounds()
			if got.Dx() != tt.wantW || got.Dy() != tt.wantH {
				t.Errorf("Fit() = %dx%d, want %dx%d", got.Dx(), got.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestDimensionsNil(t *testing.T) {
	if Dimensions(nil) != nil {
		t.Error("Dimensions(nil) should be nil")
	}
}
