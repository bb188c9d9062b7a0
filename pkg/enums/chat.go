package enums

import "fmt"

// ParticipantRole is the relationship a user holds with an accepted ride.
type ParticipantRole string

const (
	ParticipantPublisher ParticipantRole = "publisher"
	ParticipantTaker     ParticipantRole = "taker"
)

// IsValid reports whether the value is known.
func (r ParticipantRole) IsValid() bool {
	return r == ParticipantPublisher || r == ParticipantTaker
}

// ChatMessageType enumerates chat payload kinds.
type ChatMessageType string

const (
	ChatMessageText       ChatMessageType = "text"
	ChatMessageAttachment ChatMessageType = "attachment"
)

// ParseChatMessageType converts raw input into a ChatMessageType.
func ParseChatMessageType(value string) (ChatMessageType, error) {
	switch ChatMessageType(value) {
	case ChatMessageText, ChatMessageAttachment:
		return ChatMessageType(value), nil
	default:
		return "", fmt.Errorf("invalid chat message type %q", value)
	}
}
