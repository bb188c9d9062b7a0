package chat

import (
	"mime"
	"net/http"
	"strings"

	"github.com/courseshare/courseshare-backend/api/middleware"
	"github.com/courseshare/courseshare-backend/api/responses"
	"github.com/courseshare/courseshare-backend/api/validators"
	"github.com/courseshare/courseshare-backend/internal/chat"
	"github.com/courseshare/courseshare-backend/pkg/enums"
	pkgerrors "github.com/courseshare/courseshare-backend/pkg/errors"
	"github.com/courseshare/courseshare-backend/pkg/logger"
)

const attachmentField = "attachment"

type sendRequest struct {
	Type    string `json:"type" validate:"omitempty,oneof=text attachment"`
	Content string `json:"content"`
}

func serviceUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "chat service unavailable"))
}

// ListMessages returns a page of the ride's conversation.
func ListMessages(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
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
		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListMessages(r.Context(), rideID, middleware.UserIDFromContext(r.Context()), chat.ListParams{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// SendMessage posts a text message as JSON, or an attachment as a multipart form
// with an "attachment" file and an optional "content" caption.
func SendMessage(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
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

		var input chat.SendInput
		if isMultipart(r) {
			if err := validators.ParseMultipart(w, r); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			defer func() {
				_ = r.MultipartForm.RemoveAll()
			}()

			uploads, closeUploads, err := validators.FormUploads(r, attachmentField, 1)
			defer closeUploads()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if len(uploads) == 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "attachment file is required").
					WithDetails(map[string]any{"field": attachmentField}))
				return
			}
			input = chat.SendInput{
				Type:       enums.ChatMessageAttachment,
				Content:    validators.FormValue(r, "content"),
				Attachment: &uploads[0],
			}
		} else {
			var body sendRequest
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if body.Type != "" && body.Type != string(enums.ChatMessageText) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "attachments must be sent as multipart/form-data"))
				return
			}
			input = chat.SendInput{Type: enums.ChatMessageText, Content: body.Content}
		}

		msg, err := svc.SendMessage(r.Context(), rideID, middleware.UserIDFromContext(r.Context()), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, msg)
	}
}

// DeleteMessage removes one of the caller's own messages.
func DeleteMessage(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg)
			return
		}

		messageID, err := validators.PathUUID(r, "messageId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteMessage(r.Context(), messageID, middleware.UserIDFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// DownloadAttachment streams a chat attachment to a ride participant.
func DownloadAttachment(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg)
			return
		}

		messageID, err := validators.PathUUID(r, "messageId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		attachment, err := svc.OpenAttachment(r.Context(), messageID, middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer attachment.Body.Close()

		responses.WriteFile(w, attachment.Name, attachment.ContentType, attachment.Size, attachment.Body)
	}
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}
