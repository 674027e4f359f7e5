package filestore

import (
	"context"
	"fmt"
	"io"
)

// noneStore discards uploads; documents then carry no external reference.
type noneStore struct{}

func init() {
	Register("none", func(args interface{}) (Store, error) {
		return noneStore{}, nil
	})
}

func (noneStore) Type() string {
	return "none"
}

func (noneStore) Save(ctx context.Context, key string, r io.ReadSeeker, size int64) error {
	return nil
}

func (noneStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("file store disabled")
}

func (noneStore) Remove(ctx context.Context, key string) error {
	return nil
}

func (noneStore) URL(key, baseURL string) string {
	return ""
}
