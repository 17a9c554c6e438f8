package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder

	"github.com/gen2brain/go-fitz"
)

// Document describes an uploaded file that could be opened
type Document struct {
	Format string // "jpeg", "png" or "pdf"
	Pages  int
	Width  int // first page, pixels; 0 for PDFs
	Height int
}

// Inspector opens a document far enough to prove it is readable
type Inspector func(data []byte, contentType string) (*Document, error)

// Inspect checks that data is a readable PDF or image of the given content type
func Inspect(data []byte, contentType string) (*Document, error) {
	if contentType == "application/pdf" {
		return inspectPDF(data)
	}
	return inspectImage(data, contentType)
}

func inspectPDF(data []byte) (*Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages < 1 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	return &Document{Format: "pdf", Pages: pages}, nil
}

func inspectImage(data []byte, contentType string) (*Document, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	if want := "image/" + format; want != contentType {
		return nil, fmt.Errorf("image is %s, expected %s", want, contentType)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("image has no pixels")
	}
	return &Document{Format: format, Pages: 1, Width: cfg.Width, Height: cfg.Height}, nil
}
