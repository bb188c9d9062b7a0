package documents

import (
	"net/http"

	"github.com/courseshare/courseshare-backend/api/middleware"
	"github.com/courseshare/courseshare-backend/api/responses"
	"github.com/courseshare/courseshare-backend/api/validators"
	"github.com/courseshare/courseshare-backend/internal/documents"
	pkgerrors "github.com/courseshare/courseshare-backend/pkg/errors"
	"github.com/courseshare/courseshare-backend/pkg/logger"
)

const fileField = "file"

func serviceUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "documents service unavailable"))
}

// List returns the documents attached to a ride.
func List(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg)
			return
		}

		rideID, err := validators.PathInt64(r, "rideId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		docs, err := svc.List(r.Context(), rideID, middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": docs})
	}
}

// Upload attaches a single "file" to a ride.
func Upload(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg)
			return
		}

		rideID, err := validators.PathInt64(r, "rideId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := validators.ParseMultipart(w, r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer func() {
			_ = r.MultipartForm.RemoveAll()
		}()

		uploads, closeUploads, err := validators.FormUploads(r, fileField, 1)
		defer closeUploads()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(uploads) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "file is required").
				WithDetails(map[string]any{"field": fileField}))
			return
		}

		doc, err := svc.Upload(r.Context(), rideID, middleware.UserIDFromContext(r.Context()), uploads[0])
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, doc)
	}
}

// Download streams a document to a ride participant.
func Download(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg)
			return
		}

		documentID, err := validators.PathUUID(r, "documentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		download, err := svc.Download(r.Context(), documentID, middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer download.Body.Close()

		doc := download.Document
		responses.WriteFile(w, doc.Name, doc.MimeType, doc.SizeBytes, download.Body)
	}
}

// Delete removes a document from its ride.
func Delete(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg)
			return
		}

		documentID, err := validators.PathUUID(r, "documentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), documentID, middleware.UserIDFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
