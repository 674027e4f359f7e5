package filestore

import (
	"context"
	"io"
	"time"
)

// WithTimeout bounds every call to s. For Open the deadline also covers
// reading the returned body, which is released on Close.
func WithTimeout(s Store, timeout time.Duration) Store {
	if s == nil || timeout <= 0 {
		return s
	}
	return &timeoutStore{next: s, timeout: timeout}
}

type timeoutStore struct {
	next    Store
	timeout time.Duration
}

func (t *timeoutStore) Type() string {
	return t.next.Type()
}

func (t *timeoutStore) URL(key, baseURL string) string {
	return t.next.URL(key, baseURL)
}

func (t *timeoutStore) Save(ctx context.Context, key string, r io.ReadSeeker, size int64) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Save(ctx, key, r, size)
}

func (t *timeoutStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	rc, err := t.next.Open(ctx, key)
	if err != nil {
		cancel()
		return nil, err
	}
	return &cancelOnClose{ReadCloser: rc, cancel: cancel}, nil
}

func (t *timeoutStore) Remove(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Remove(ctx, key)
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
