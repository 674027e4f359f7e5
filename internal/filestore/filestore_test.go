package filestore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docqa/internal/config"
)

func TestLocalStoreSaveOpen(t *testing.T) {
	dir := t.TempDir()
	store, err := New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": dir}})
	require.NoError(t, err)
	require.Equal(t, "local", store.Type())

	ctx := context.Background()
	payload := []byte("Alpha. Beta. Gamma.")
	require.NoError(t, store.Save(ctx, "doc.txt", bytes.NewReader(payload), int64(len(payload))))

	rc, err := store.Open(ctx, "doc.txt")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "doc.txt", entries[0].Name())

	require.Equal(t, "http://host/api/v1/files/doc.txt", store.URL("doc.txt", "http://host/"))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": t.TempDir()}})
	require.NoError(t, err)
	err = store.Save(context.Background(), "../escape", bytes.NewReader(nil), 0)
	require.Error(t, err)
	_, err = store.Open(context.Background(), filepath.Join("a", "b"))
	require.Error(t, err)
}

func TestLocalStorePublicURL(t *testing.T) {
	store, err := New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": t.TempDir(), "public_url": "https://cdn.example.com/"}})
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/a.md", store.URL("a.md", ""))
}

func TestNoneStore(t *testing.T) {
	store, err := New(config.FileStoreConfig{})
	require.NoError(t, err)
	require.Equal(t, "none", store.Type())
	require.NoError(t, store.Save(context.Background(), "k", bytes.NewReader([]byte("x")), 1))
	require.Empty(t, store.URL("k", "http://host"))
}

func TestS3StoreURL(t *testing.T) {
	store, err := New(config.FileStoreConfig{Type: "s3", Data: map[string]interface{}{
		"endpoint":   "minio.local:9000",
		"bucket":     "docs",
		"secret_id":  "id",
		"secret_key": "key",
		"prefix":     "/uploads/",
	}})
	require.NoError(t, err)
	require.Equal(t, "http://minio.local:9000/docs/uploads/a.txt", store.URL("a.txt", ""))

	_, err = New(config.FileStoreConfig{Type: "s3", Data: map[string]interface{}{"endpoint": "x"}})
	require.Error(t, err)
}

func TestUnknownStore(t *testing.T) {
	_, err := New(config.FileStoreConfig{Type: "ftp"})
	require.Error(t, err)
}

func TestLocalStoreRemove(t *testing.T) {
	dir := t.TempDir()
	store, err := New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": dir}})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "doc.md", bytes.NewReader([]byte("# a")), 3))
	require.NoError(t, store.Remove(ctx, "doc.md"))
	_, err = os.Stat(filepath.Join(dir, "doc.md"))
	require.True(t, os.IsNotExist(err))
	require.NoError(t, store.Remove(ctx, "doc.md"))
}

type blockingStore struct {
	noneStore
	hadDeadline bool
}

func (b *blockingStore) Save(ctx context.Context, key string, r io.ReadSeeker, size int64) error {
	_, b.hadDeadline = ctx.Deadline()
	<-ctx.Done()
	return ctx.Err()
}

func TestTimeoutStoreBoundsSave(t *testing.T) {
	inner := &blockingStore{}
	store := WithTimeout(inner, 20*time.Millisecond)
	err := store.Save(context.Background(), "k", bytes.NewReader(nil), 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, inner.hadDeadline)
	require.Equal(t, "none", store.Type())
	require.Same(t, Store(inner), WithTimeout(inner, 0))
}

func TestTimeoutStoreOpenReleasesOnClose(t *testing.T) {
	dir := t.TempDir()
	local, err := New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": dir}})
	require.NoError(t, err)
	store := WithTimeout(local, time.Minute)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "a.txt", bytes.NewReader([]byte("abc")), 3))
	rc, err := store.Open(ctx, "a.txt")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))
	require.NoError(t, rc.Close())
}
