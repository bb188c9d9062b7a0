package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseshare/courseshare-backend/pkg/enums"
)

// ChatMessage is one message exchanged between the two parties of a ride.
type ChatMessage struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	RideID         int64                 `gorm:"column:ride_id;not null;index" json:"ride_id"`
	SenderID       uuid.UUID             `gorm:"column:sender_id;type:uuid;not null" json:"sender_id"`
	SenderRole     enums.ParticipantRole `gorm:"column:sender_role;type:text;not null" json:"sender_role"`
	Type           enums.ChatMessageType `gorm:"column:type;type:text;not null" json:"type"`
	Content        string                `gorm:"column:content;not null;default:''" json:"content"`
	AttachmentName *string               `gorm:"column:attachment_name" json:"attachment_name,omitempty"`
	AttachmentKey  *string               `gorm:"column:attachment_key" json:"-"`
	AttachmentMime *string               `gorm:"column:attachment_mime" json:"attachment_mime,omitempty"`
	AttachmentSize *int64                `gorm:"column:attachment_size" json:"attachment_size,omitempty"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_messages" }

func (m *ChatMessage) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
