package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseshare/courseshare-backend/internal/documents"
	"github.com/courseshare/courseshare-backend/internal/notifications"
	"github.com/courseshare/courseshare-backend/pkg/async"
	"github.com/courseshare/courseshare-backend/pkg/db/models"
	"github.com/courseshare/courseshare-backend/pkg/enums"
	pkgerrors "github.com/courseshare/courseshare-backend/pkg/errors"
	"github.com/courseshare/courseshare-backend/pkg/logger"
	"github.com/courseshare/courseshare-backend/pkg/pagination"
	"github.com/courseshare/courseshare-backend/pkg/storage"
	"github.com/courseshare/courseshare-backend/pkg/visibility"
)

// MaxContentLength bounds the text of a message, in characters.
const MaxContentLength = 500

const (
	taskUnlinkAttachment = "storage.unlink_chat_attachment"
	taskNotifyMessage    = "chat.notify_message"
)

type rideFinder interface {
	FindByID(ctx context.Context, id int64) (*models.Ride, error)
}

type notifier interface {
	NotifyUsers(ctx context.Context, userIDs []uuid.UUID, payload notifications.Payload) error
}

// Service exposes the chat of an accepted ride to its two parties.
type Service interface {
	ListMessages(ctx context.Context, rideID int64, userID uuid.UUID, params ListParams) (*ListResult, error)
	SendMessage(ctx context.Context, rideID int64, userID uuid.UUID, input SendInput) (*models.ChatMessage, error)
	DeleteMessage(ctx context.Context, messageID, userID uuid.UUID) error
	OpenAttachment(ctx context.Context, messageID, userID uuid.UUID) (*Attachment, error)
}

// SendInput is a message to post. Attachment is required for attachment messages,
// where Content becomes an optional caption.
type SendInput struct {
	Type       enums.ChatMessageType
	Content    string
	Attachment *documents.Upload
}

// ListParams page a conversation.
type ListParams struct {
	Limit  int
	Cursor string
}

// ListResult is a page of messages, newest first.
type ListResult struct {
	Items  []models.ChatMessage `json:"items"`
	Cursor string               `json:"cursor"`
}

// Attachment is an opened chat file. Callers must close Body.
type Attachment struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// ServiceParams wire the chat service.
type ServiceParams struct {
	Repo      Repository
	Rides     rideFinder
	Files     storage.FileStore
	KeyPrefix string
	Runner    async.Runner
	Notifier  notifier
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	rides     rideFinder
	files     storage.FileStore
	keyPrefix string
	runner    async.Runner
	notifier  notifier
	logg      *logger.Logger
}

// NewService builds a chat service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("chat repository required")
	}
	if params.Rides == nil {
		return nil, fmt.Errorf("rides repository required")
	}
	if params.Files == nil {
		return nil, fmt.Errorf("file store required")
	}
	if params.Runner == nil {
		return nil, fmt.Errorf("task runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      params.Repo,
		rides:     params.Rides,
		files:     params.Files,
		keyPrefix: params.KeyPrefix,
		runner:    params.Runner,
		notifier:  params.Notifier,
		logg:      params.Logger,
	}, nil
}

func (s *service) ListMessages(ctx context.Context, rideID int64, userID uuid.UUID, params ListParams) (*ListResult, error) {
	if _, _, err := s.access(ctx, rideID, userID); err != nil {
		return nil, err
	}

	query := listMessagesParams{RideID: rideID, Limit: pagination.LimitWithBuffer(params.Limit)}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		id, err := cursor.UUID()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
		query.CursorID = id
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list messages")
	}
	page := pagination.Trim(rows, params.Limit, func(m models.ChatMessage) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID.String()}
	})
	items := page.Items
	if items == nil {
		items = []models.ChatMessage{}
	}
	return &ListResult{Items: items, Cursor: page.NextCursor}, nil
}

func (s *service) SendMessage(ctx context.Context, rideID int64, userID uuid.UUID, input SendInput) (*models.ChatMessage, error) {
	ride, role, err := s.access(ctx, rideID, userID)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(input.Content)
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("message must be at most %d characters", MaxContentLength))
	}

	msg := &models.ChatMessage{
		ID:         uuid.New(),
		RideID:     rideID,
		SenderID:   userID,
		SenderRole: role,
		Type:       input.Type,
		Content:    content,
	}

	switch input.Type {
	case enums.ChatMessageText:
		if content == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "message content is required")
		}
		if input.Attachment != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "text messages cannot carry an attachment")
		}
	case enums.ChatMessageAttachment:
		if input.Attachment == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "attachment is required")
		}
		file := *input.Attachment
		if err := documents.ValidateSingle(file); err != nil {
			return nil, err
		}
		key := storage.ChatAttachmentKey(s.keyPrefix, rideID, msg.ID, file.Name)
		if err := s.files.Put(ctx, key, file.Body, file.Size, file.ContentType); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store attachment")
		}
		name, mime, size := file.Name, file.ContentType, file.Size
		msg.AttachmentName = &name
		msg.AttachmentKey = &key
		msg.AttachmentMime = &mime
		msg.AttachmentSize = &size
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid message type")
	}

	if err := s.repo.Create(ctx, msg); err != nil {
		if msg.AttachmentKey != nil {
			if delErr := s.files.Delete(ctx, *msg.AttachmentKey); delErr != nil {
				s.logg.Error(s.logg.WithField(ctx, "key", *msg.AttachmentKey), "chat.cleanup_failed", delErr)
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create message")
	}

	recipient := ride.PublishedBy
	if role == enums.ParticipantPublisher && ride.AcceptedBy != nil {
		recipient = *ride.AcceptedBy
	}
	if s.notifier != nil && recipient != userID {
		preview := content
		if msg.Type == enums.ChatMessageAttachment && preview == "" {
			preview = "Pièce jointe"
		}
		s.runner.Submit(ctx, taskNotifyMessage, func(ctx context.Context) error {
			return s.notifier.NotifyUsers(ctx, []uuid.UUID{recipient}, notifications.Payload{
				Type:    enums.NotificationTypeChatMessage,
				Title:   fmt.Sprintf("Nouveau message sur la course #%d", rideID),
				Message: preview,
				RideID:  &rideID,
			})
		})
	}
	return msg, nil
}

func (s *service) DeleteMessage(ctx context.Context, messageID, userID uuid.UUID) error {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the sender can delete a message")
	}
	if _, _, err := s.access(ctx, msg.RideID, userID); err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, msg.ID, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete message")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "message not found")
	}

	if msg.AttachmentKey != nil {
		key := *msg.AttachmentKey
		s.runner.Submit(ctx, taskUnlinkAttachment, func(ctx context.Context) error {
			return s.files.Delete(ctx, key)
		})
	}
	return nil
}

func (s *service) OpenAttachment(ctx context.Context, messageID, userID uuid.UUID) (*Attachment, error) {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.access(ctx, msg.RideID, userID); err != nil {
		return nil, err
	}
	if msg.AttachmentKey == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "message has no attachment")
	}
	body, err := s.files.Get(ctx, *msg.AttachmentKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "attachment content missing")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read attachment")
	}
	att := &Attachment{Body: body}
	if msg.AttachmentName != nil {
		att.Name = *msg.AttachmentName
	}
	if msg.AttachmentMime != nil {
		att.ContentType = *msg.AttachmentMime
	}
	if msg.AttachmentSize != nil {
		att.Size = *msg.AttachmentSize
	}
	return att, nil
}

// access applies the chat gate and returns the ride with the caller's role.
func (s *service) access(ctx context.Context, rideID int64, userID uuid.UUID) (*models.Ride, enums.ParticipantRole, error) {
	if userID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	ride, err := s.rides.FindByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", pkgerrors.New(pkgerrors.CodeNotFound, "ride not found")
		}
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load ride")
	}
	role, err := visibility.ChatAccess(ride, userID)
	if err != nil {
		return nil, "", err
	}
	return ride, role, nil
}

func (s *service) loadMessage(ctx context.Context, messageID uuid.UUID) (*models.ChatMessage, error) {
	if messageID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message id required")
	}
	msg, err := s.repo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "message not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load message")
	}
	return msg, nil
}
