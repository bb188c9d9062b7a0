package local

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/courseshare/courseshare-backend/pkg/storage"
)

func TestStoreRoundTripAndDelete(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "rides/1/documents/a.pdf", strings.NewReader("%PDF-1.4"), 8, "application/pdf"))

	rc, err := store.Get(ctx, "rides/1/documents/a.pdf")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "%PDF-1.4", string(data))

	require.NoError(t, store.Delete(ctx, "rides/1/documents/a.pdf"))
	require.NoError(t, store.Delete(ctx, "rides/1/documents/a.pdf"))

	_, err = store.Get(ctx, "rides/1/documents/a.pdf")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStoreKeysCannotEscapeBase(t *testing.T) {
	base := t.TempDir()
	store, err := New(base)
	require.NoError(t, err)

	full, err := store.resolve("../../etc/passwd")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(full, base))

	_, err = store.resolve("/")
	require.Error(t, err)
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New(" ")
	require.Error(t, err)
}
