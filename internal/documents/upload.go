package documents

import (
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	pkgerrors "github.com/courseshare/courseshare-backend/pkg/errors"
)

const (
	// MaxFilesPerRide caps how many documents a ride carries.
	MaxFilesPerRide = 5
	// MaxRideBytes caps the size of a single document and the aggregate per ride.
	MaxRideBytes int64 = 10 * 1024 * 1024
)

type mimeGroup string

const (
	mimeGroupImages mimeGroup = "images"
	mimeGroupPDFs   mimeGroup = "PDFs"
)

var mimeGroupTypes = map[mimeGroup][]string{
	mimeGroupImages: {"image/png", "image/jpeg", "image/webp", "image/heic", "image/heif"},
	mimeGroupPDFs:   {"application/pdf"},
}

var allowedGroups = []mimeGroup{mimeGroupPDFs, mimeGroupImages}

// Upload is a file received from a client, sniffed and ready to be stored.
type Upload struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

// NewUpload sniffs the content type of body and rewinds it. Declared content types are ignored.
func NewUpload(name string, size int64, body io.ReadSeeker) (Upload, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Upload{}, pkgerrors.New(pkgerrors.CodeValidation, "file name is required")
	}
	mtype, err := mimetype.DetectReader(body)
	if err != nil {
		return Upload{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unable to read file")
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return Upload{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rewind upload")
	}
	return Upload{
		Name:        name,
		Size:        size,
		ContentType: mtype.String(),
		Body:        body,
	}, nil
}

// ValidateBatch checks uploads against the per-ride limits, given what the ride already holds.
func ValidateBatch(existingCount int, existingBytes int64, uploads []Upload) error {
	if existingCount+len(uploads) > MaxFilesPerRide {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("a ride can hold at most %d documents", MaxFilesPerRide)).
			WithDetails(map[string]any{"max_files": MaxFilesPerRide})
	}
	total := existingBytes
	for _, upload := range uploads {
		if err := validateOne(upload); err != nil {
			return err
		}
		total += upload.Size
	}
	if total > MaxRideBytes {
		return pkgerrors.New(pkgerrors.CodeValidation, "documents exceed the 10 MiB limit per ride").
			WithDetails(map[string]any{"max_bytes": MaxRideBytes})
	}
	return nil
}

// ValidateSingle checks a standalone attachment such as a chat file.
func ValidateSingle(upload Upload) error {
	return validateOne(upload)
}

func validateOne(upload Upload) error {
	if upload.Size <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s is empty", upload.Name))
	}
	if upload.Size > MaxRideBytes {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s exceeds the 10 MiB limit", upload.Name))
	}
	if !IsAllowedMime(upload.ContentType) {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must be one of %s", upload.Name, allowedDescription()))
	}
	return nil
}

// IsAllowedMime reports whether the sniffed content type may be stored.
func IsAllowedMime(contentType string) bool {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	for _, group := range allowedGroups {
		for _, candidate := range mimeGroupTypes[group] {
			if candidate == base {
				return true
			}
		}
	}
	return false
}

func allowedDescription() string {
	names := make([]string, 0, len(allowedGroups))
	for _, group := range allowedGroups {
		names = append(names, string(group))
	}
	return strings.Join(names, " or ")
}
