// Package render rasterizes the first page of PDF documents.
package render

import (
	"errors"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// ErrRender is returned when a document cannot be opened or its first
// page cannot be rasterized.
var ErrRender = errors.New("render: rasterization failed")

// baseDPI is the PDF rendering resolution at zoom 1.0.
const baseDPI = 72.0

// Rasterizer turns raw document bytes into a first-page bitmap at a
// fixed zoom factor.
type Rasterizer interface {
	// RasterizeFirstPage renders page 1 of the document. The returned
	// image is owned by the caller and never shared.
	RasterizeFirstPage(pdf []byte, zoom float64) (image.Image, error)
}

// MuPDF rasterizes PDFs with the MuPDF engine.
type MuPDF struct{}

// NewMuPDF creates a MuPDF-backed Rasterizer.
func NewMuPDF() *MuPDF {
	return &MuPDF{}
}

// RasterizeFirstPage implements Rasterizer.
func (m *MuPDF) RasterizeFirstPage(pdf []byte, zoom float64) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("%w: open document: %w", ErrRender, err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrRender)
	}

	img, err := doc.ImageDPI(0, baseDPI*zoom)
	if err != nil {
		return nil, fmt.Errorf("%w: render page 1: %w", ErrRender, err)
	}
	return img, nil
}
