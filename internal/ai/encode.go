package ai

import (
	"bytes"
	"fmt"
	"os"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/invoiceworks/invoice-agent/internal/invoice"
)

// MaxImageDimension bounds the longer side of a submitted image.
const MaxImageDimension = 1024

// jpegQuality for re-encoded images.
const jpegQuality = 85

// EncodeForModel prepares a file for submission. Images are decoded,
// downscaled so neither dimension exceeds maxDim (Lanczos resampling) and
// re-encoded as JPEG. PDFs are validated structurally and passed through
// unchanged.
func EncodeForModel(path string, maxDim int) (Payload, error) {
	if invoice.FileExtension(path) == "pdf" {
		return encodePDF(path)
	}
	return encodeImage(path, maxDim)
}

func encodePDF(path string) (Payload, error) {
	pages, err := api.PageCountFile(path)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: unreadable PDF: %v", invoice.ErrValidation, err)
	}
	if pages < 1 {
		return Payload{}, fmt.Errorf("%w: PDF has no pages", invoice.ErrValidation)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", invoice.ErrFileSystem, err)
	}
	return Payload{Data: data, MIME: "application/pdf"}, nil
}

func encodeImage(path string, maxDim int) (Payload, error) {
	if maxDim <= 0 {
		maxDim = MaxImageDimension
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		if os.IsNotExist(err) {
			return Payload{}, fmt.Errorf("%w: %v", invoice.ErrFileSystem, err)
		}
		return Payload{}, fmt.Errorf("%w: cannot decode image: %v", invoice.ErrValidation, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxDim || bounds.Dy() > maxDim {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return Payload{}, fmt.Errorf("%w: cannot re-encode image: %v", invoice.ErrValidation, err)
	}
	return Payload{Data: buf.Bytes(), MIME: "image/jpeg"}, nil
}
