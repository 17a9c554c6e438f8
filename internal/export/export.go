// Package export serializes receipt snapshots to CSV and JSON files.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/zombor/eco-receipts/internal/receipt"
)

// Format is an export file format
type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
)

// ErrUnknownFormat is returned for formats other than csv and json
var ErrUnknownFormat = errors.New("unknown export format")

// Header is the first CSV row
var Header = []string{"ID", "Date", "Vendor", "Amount", "Category", "Eco Score"}

// ExportError is returned when a snapshot cannot be exported. Nothing has
// been written to the destination when the error comes from serialization.
type ExportError struct {
	Format Format
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Format, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// ParseFormat accepts "csv" or "json" in any case
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case CSV, JSON:
		return f, nil
	}
	return "", &ExportError{Format: Format(s), Err: ErrUnknownFormat}
}

// Filename is the name of the downloaded file
func (f Format) Filename() string {
	return "receipts." + string(f)
}

// ContentType is the MIME type of the file
func (f Format) ContentType() string {
	if f == CSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

// Write serializes receipts in the given format and copies the complete
// result to w.
func Write(w io.Writer, format Format, receipts []receipt.Receipt) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case JSON:
		data, err = encodeJSON(receipts)
	case CSV:
		data, err = encodeCSV(receipts)
	default:
		err = ErrUnknownFormat
	}
	if err != nil {
		return &ExportError{Format: format, Err: err}
	}

	if _, err := w.Write(data); err != nil {
		return &ExportError{Format: format, Err: fmt.Errorf("writing output: %w", err)}
	}
	return nil
}

func encodeJSON(receipts []receipt.Receipt) ([]byte, error) {
	if receipts == nil {
		receipts = []receipt.Receipt{}
	}
	data, err := json.MarshalIndent(receipts, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling receipts: %w", err)
	}
	return data, nil
}

func encodeCSV(receipts []receipt.Receipt) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	if err := cw.Write(Header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	for _, r := range receipts {
		row := []string{
			r.ID,
			r.UploadDate.UTC().Format(time.RFC3339),
			r.Vendor,
			formatNumber(r.Amount),
			r.Category,
			formatNumber(r.EcoScore),
		}
		if err := cw.Write(row); err != nil {
			return nil, fmt.Errorf("writing receipt %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}

// formatNumber prints the shortest decimal that round-trips
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
