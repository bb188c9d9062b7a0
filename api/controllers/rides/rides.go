package rides

import (
	"net/http"
	"strings"

	"github.com/courseshare/courseshare-backend/api/middleware"
	"github.com/courseshare/courseshare-backend/api/responses"
	"github.com/courseshare/courseshare-backend/api/validators"
	"github.com/courseshare/courseshare-backend/internal/documents"
	"github.com/courseshare/courseshare-backend/internal/rides"
	"github.com/courseshare/courseshare-backend/pkg/enums"
	pkgerrors "github.com/courseshare/courseshare-backend/pkg/errors"
	"github.com/courseshare/courseshare-backend/pkg/logger"
)

const (
	rideField      = "ride"
	documentsField = "documents"
)

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=completed cancelled"`
}

func serviceUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rides service unavailable"))
}

// List returns available rides. Anonymous callers are allowed and always see sanitized rides.
func List(svc rides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg)
			return
		}

		params, err := listParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListAvailable(r.Context(), middleware.UserIDFromContext(r.Context()), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Mine lists the caller's rides for the {scope} route parameter: published or accepted.
func Mine(svc rides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg)
			return
		}

		params, err := listParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		var result *rides.ListResult
		switch scope := strings.ToLower(chiParam(r, "scope")); scope {
		case "published":
			result, err = svc.ListPublished(r.Context(), userID, params)
		case "accepted":
			result, err = svc.ListAccepted(r.Context(), userID, params)
		default:
			err = pkgerrors.New(pkgerrors.CodeNotFound, "unknown ride list").WithDetails(map[string]any{"scope": scope})
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Get returns one ride, sanitized for everyone but its publisher and taker.
func Get(svc rides.Service, logg *logger.Logger) http.HandlerFunc {
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

		ride, err := svc.GetRide(r.Context(), rideID, middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ride)
	}
}

// Create publishes a ride from a multipart form: a "ride" JSON field plus optional "documents" files.
func Create(svc rides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg)
			return
		}

		if err := validators.ParseMultipart(w, r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer func() {
			_ = r.MultipartForm.RemoveAll()
		}()

		raw := validators.FormValue(r, rideField)
		if raw == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "ride payload is required").
				WithDetails(map[string]any{"field": rideField}))
			return
		}
		var draft rides.RideDraft
		if err := validators.DecodeJSONString(raw, &draft); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		uploads, closeUploads, err := validators.FormUploads(r, documentsField, documents.MaxFilesPerRide)
		defer closeUploads()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ride, err := svc.CreateRide(r.Context(), middleware.UserIDFromContext(r.Context()), draft, uploads)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ride)
	}
}

// Accept claims an available ride for the caller.
func Accept(svc rides.Service, logg *logger.Logger) http.HandlerFunc {
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

		ride, err := svc.AcceptRide(r.Context(), rideID, middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ride)
	}
}

// UpdateStatus completes or cancels an accepted ride.
func UpdateStatus(svc rides.Service, logg *logger.Logger) http.HandlerFunc {
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

		var body statusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseRideStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		ride, err := svc.UpdateStatus(r.Context(), rideID, middleware.UserIDFromContext(r.Context()), target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ride)
	}
}

// Delete removes an available ride owned by the caller.
func Delete(svc rides.Service, logg *logger.Logger) http.HandlerFunc {
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

		if err := svc.DeleteRide(r.Context(), rideID, middleware.UserIDFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
