package chat

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseshare/courseshare-backend/pkg/db/models"
	"github.com/courseshare/courseshare-backend/pkg/pagination"
)

// Repository persists chat messages.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, msg *models.ChatMessage) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ChatMessage, error)
	List(ctx context.Context, params listMessagesParams) ([]models.ChatMessage, error)
	Delete(ctx context.Context, id, senderID uuid.UUID) (bool, error)
}

type listMessagesParams struct {
	RideID   int64
	Limit    int
	Cursor   *pagination.Cursor
	CursorID uuid.UUID
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a chat repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, msg *models.ChatMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// List returns messages newest first so that the cursor walks back in history.
func (r *repository) List(ctx context.Context, params listMessagesParams) ([]models.ChatMessage, error) {
	query := r.db.WithContext(ctx).Model(&models.ChatMessage{}).Where("ride_id = ?", params.RideID)
	if params.Cursor != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))",
			params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.CursorID)
	}
	var messages []models.ChatMessage
	if err := query.Order("created_at DESC, id DESC").Limit(params.Limit).Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// Delete removes a message only when senderID wrote it.
func (r *repository) Delete(ctx context.Context, id, senderID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND sender_id = ?", id, senderID).
		Delete(&models.ChatMessage{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
