package receipt

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxUploadSize is the largest accepted upload in bytes
const MaxUploadSize = 10 << 20

// allowedTypes maps accepted extensions to the content type the data must sniff as
var allowedTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
}

// Upload is a single file handed to Store.Upload
type Upload struct {
	Filename string
	UserID   string
	Data     []byte
}

// validate checks the upload contract and returns the detected content type
func (u Upload) validate() (string, error) {
	if u.Filename == "" && len(u.Data) == 0 {
		return "", ErrNoFile
	}
	if len(u.Data) == 0 {
		return "", fmt.Errorf("%w: empty file", ErrNoFile)
	}
	if len(u.Data) > MaxUploadSize {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(u.Data), MaxUploadSize)
	}

	ext := strings.ToLower(filepath.Ext(u.Filename))
	want, ok := allowedTypes[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q (allowed: .jpg, .jpeg, .png, .pdf)", ErrUnsupportedType, ext)
	}

	detected := mimetype.Detect(u.Data)
	if !detected.Is(want) {
		return "", fmt.Errorf("%w: content is %s, extension %s expects %s", ErrUnsupportedType, detected.String(), ext, want)
	}
	return want, nil
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaceRuns   = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeChars.ReplaceAllString(base, "")
	base = spaceRuns.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	// phone cameras produce very long names
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}
