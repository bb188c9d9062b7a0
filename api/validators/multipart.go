package validators

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/courseshare/courseshare-backend/internal/documents"
	pkgerrors "github.com/courseshare/courseshare-backend/pkg/errors"
)

const (
	multipartMemory = 8 << 20
	// MaxUploadRequestBytes bounds a multipart request: the per-ride document cap plus form overhead.
	MaxUploadRequestBytes = documents.MaxRideBytes + 1<<20
)

// ParseMultipart limits the body size and parses a multipart form.
func ParseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadRequestBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return pkgerrors.New(pkgerrors.CodeValidation, "request body too large").
				WithDetails(map[string]any{"max_bytes": documents.MaxRideBytes})
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}
	return nil
}

// FormUploads opens every file of a multipart field as a sniffed upload.
// The returned closer releases the opened files and must always be called.
func FormUploads(r *http.Request, field string, max int) ([]documents.Upload, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	if r.MultipartForm == nil {
		return nil, closeAll, nil
	}

	headers := r.MultipartForm.File[field]
	if max > 0 && len(headers) > max {
		return nil, closeAll, pkgerrors.New(pkgerrors.CodeValidation, "too many files").
			WithDetails(map[string]any{"field": field, "max_files": max})
	}

	uploads := make([]documents.Upload, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unable to open upload")
		}
		opened = append(opened, file)

		upload, err := documents.NewUpload(header.Filename, header.Size, file)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, closeAll, nil
}

// FormValue returns a trimmed multipart or urlencoded field.
func FormValue(r *http.Request, field string) string {
	return strings.TrimSpace(r.FormValue(field))
}
