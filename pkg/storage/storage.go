package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("storage: object not found")

// FileStore stores opaque bytes under a key.
type FileStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Pinger exposes the readiness check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RideDocumentKey builds the object key of a document attached to a ride.
func RideDocumentKey(prefix string, rideID int64, documentID uuid.UUID, filename string) string {
	return path.Join(cleanPrefix(prefix), fmt.Sprintf("%d", rideID), "documents", documentID.String()+"-"+SanitizeFilename(filename))
}

// ChatAttachmentKey builds the object key of a chat attachment.
func ChatAttachmentKey(prefix string, rideID int64, messageID uuid.UUID, filename string) string {
	return path.Join(cleanPrefix(prefix), fmt.Sprintf("%d", rideID), "chat", messageID.String()+"-"+SanitizeFilename(filename))
}

// SanitizeFilename keeps the base name and replaces characters unsafe in object keys.
func SanitizeFilename(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "file"
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func cleanPrefix(prefix string) string {
	trimmed := strings.Trim(strings.TrimSpace(prefix), "/")
	if trimmed == "" {
		return "rides"
	}
	return trimmed
}
