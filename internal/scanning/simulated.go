package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zombor/eco-receipts/internal/latency"
)

// DefaultText is the receipt text the simulated scanner "reads" from every upload
const DefaultText = "SAMPLE STORE\nITEM 1 $10.00\nITEM 2 $5.00\nTOTAL: $15.00"

// Simulated implements the Scanner interface without OCR. It checks that
// the document can be opened, waits to mimic processing time and returns
// the fields parsed from a fixed text.
type Simulated struct {
	delay   time.Duration
	text    string
	inspect Inspector
}

// NewSimulated creates a Simulated scanner. An empty text falls back to DefaultText.
func NewSimulated(delay time.Duration, text string) *Simulated {
	return NewSimulatedWithInspector(delay, text, Inspect)
}

// NewSimulatedWithInspector creates a Simulated scanner with a custom document inspector for testing
func NewSimulatedWithInspector(delay time.Duration, text string, inspect Inspector) *Simulated {
	if text == "" {
		text = DefaultText
	}
	return &Simulated{delay: delay, text: text, inspect: inspect}
}

// ScanReceipt inspects the document and returns the simulated extraction
func (s *Simulated) ScanReceipt(ctx context.Context, data []byte, contentType string) (*ReceiptData, error) {
	doc, err := s.inspect(data, contentType)
	if err != nil {
		return nil, fmt.Errorf("inspecting document: %w", err)
	}
	slog.Debug("Scanning receipt", "format", doc.Format, "pages", doc.Pages, "width", doc.Width, "height", doc.Height)

	if err := latency.Sleep(ctx, s.delay); err != nil {
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	return ParseText(s.text), nil
}

// Close is a no-op
func (s *Simulated) Close() error {
	return nil
}
