package index

import (
	"context"
	"errors"
	"time"

	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

// WithTimeout bounds every call to s. A Load that runs out of time fails
// with ErrIndexNotFound and still matches context.DeadlineExceeded, even
// when the backend itself ignores cancellation.
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

type loadResult struct {
	idx *Index
	err error
}

func (t *timeoutStore) Location(docID string) string {
	return t.next.Location(docID)
}

func (t *timeoutStore) Persist(ctx context.Context, idx *Index, location string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Persist(ctx, idx, location)
}

func (t *timeoutStore) Load(ctx context.Context, location string) (*Index, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	done := make(chan loadResult, 1)
	go func() {
		idx, err := t.next.Load(ctx, location)
		done <- loadResult{idx: idx, err: err}
	}()
	select {
	case res := <-done:
		if res.err != nil && ctx.Err() != nil && !errors.Is(res.err, ctx.Err()) {
			res.err = errors.Join(res.err, ctx.Err())
		}
		if res.err != nil {
			return nil, appErr.Wrap(appErr.ErrIndexNotFound, res.err)
		}
		return res.idx, nil
	case <-ctx.Done():
		return nil, appErr.Wrap(appErr.ErrIndexNotFound, ctx.Err())
	}
}

func (t *timeoutStore) Remove(ctx context.Context, location string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Remove(ctx, location)
}

func (t *timeoutStore) List(ctx context.Context) ([]StoredIndex, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.List(ctx)
}

func (t *timeoutStore) Close() error {
	return t.next.Close()
}
