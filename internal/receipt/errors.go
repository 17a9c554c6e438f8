package receipt

import (
	"errors"
	"fmt"
)

var (
	ErrNoFile          = errors.New("no file provided")
	ErrMultipleFiles   = errors.New("exactly one file per upload")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file is too large")
	ErrProcessing      = errors.New("processing failed")
	ErrNotFound        = errors.New("receipt not found")
)

// UploadError is returned for every failed upload. The collection is left
// unmodified whenever one is returned.
type UploadError struct {
	Filename string
	Err      error
}

func (e *UploadError) Error() string {
	if e.Filename == "" {
		return fmt.Sprintf("upload: %v", e.Err)
	}
	return fmt.Sprintf("upload %q: %v", e.Filename, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
