package wizard

import (
	"fmt"
	"strings"

	"resumewizard/internal/errors"
	"resumewizard/internal/resume"

	"github.com/gabriel-vasile/mimetype"
)

// Accepted resume formats
const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeDOC  = "application/msword"
)

// DefaultMaxUploadSize bounds resume uploads
const DefaultMaxUploadSize = 10 << 20

// AllowedTypes lists the declared content types accepted for upload
var AllowedTypes = []string{MimePDF, MimeDOCX, MimeDOC}

// Word files are containers; short or unusual ones sniff as the container
var containerTypes = map[string][]string{
	MimeDOCX: {"application/zip"},
	MimeDOC:  {"application/x-ole-storage"},
}

var (
	ErrInvalidFileType = errors.NewValidationError(errors.ErrCodeInvalidFileType, "Invalid File Type", nil)
	ErrFileTooLarge    = errors.NewValidationError(errors.ErrCodeFileTooLarge, "File Too Large", nil)
)

// ValidateUpload checks the declared type, the size and the sniffed content.
// A missing declared type is taken from the content.
func ValidateUpload(file *resume.Upload, maxSize int64) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}

	detected := mimetype.Detect(file.Data)
	declared := normalizeMime(file.ContentType)
	if declared == "" {
		declared = normalizeMime(detected.String())
	}

	if !isAllowed(declared) {
		return fmt.Errorf("%w: %s", ErrInvalidFileType, declared)
	}
	if file.Size() == 0 {
		return fmt.Errorf("%w: empty file", ErrInvalidFileType)
	}
	if file.Size() > maxSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, file.Size(), maxSize)
	}
	if !contentMatches(declared, detected) {
		return fmt.Errorf("%w: declared %s but content is %s", ErrInvalidFileType, declared, detected.String())
	}

	file.ContentType = declared
	return nil
}

func normalizeMime(contentType string) string {
	base, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

func isAllowed(contentType string) bool {
	for _, allowed := range AllowedTypes {
		if contentType == allowed {
			return true
		}
	}
	return false
}

func contentMatches(declared string, detected *mimetype.MIME) bool {
	for m := detected; m != nil; m = m.Parent() {
		if m.Is(declared) {
			return true
		}
		for _, container := range containerTypes[declared] {
			if m.Is(container) {
				return true
			}
		}
	}
	return false
}
