package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/docqa/internal/model"
	"github.com/xxxsen/docqa/internal/pkg/dbutil"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

const documentTable = "documents"

var documentFields = []string{"id", "filename", "index_location", "external_ref", "ctime"}

// DocumentRepo is the durable document registry. Records are insert-only.
type DocumentRepo struct {
	db      *sql.DB
	dialect string
	timeout time.Duration
}

func NewDocumentRepo(db *sql.DB, dialect string) *DocumentRepo {
	return &DocumentRepo{db: db, dialect: dialect}
}

// WithTimeout returns a repo whose statements each run under timeout.
func (r *DocumentRepo) WithTimeout(timeout time.Duration) *DocumentRepo {
	clone := *r
	clone.timeout = timeout
	return &clone
}

func (r *DocumentRepo) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// Create inserts the record in a single autocommit statement; once it returns
// nil the row is committed. An existing id yields ErrDuplicateID.
func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	data := map[string]interface{}{
		"id":             doc.ID,
		"filename":       doc.Filename,
		"index_location": doc.IndexLocation,
		"external_ref":   doc.ExternalRef,
		"ctime":          doc.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert(documentTable, []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.dialect, sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.Wrap(appErr.ErrDuplicateID, err)
		}
		return err
	}
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*model.Document, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	where := map[string]interface{}{
		"id": id,
	}
	sqlStr, args, err := builder.BuildSelect(documentTable, where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.dialect, sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var doc model.Document
	if err := row.Scan(&doc.ID, &doc.Filename, &doc.IndexLocation, &doc.ExternalRef, &doc.Ctime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// List returns records newest first.
func (r *DocumentRepo) List(ctx context.Context, offset, limit uint) ([]model.Document, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	where := map[string]interface{}{
		"_orderby": "ctime desc",
	}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	sqlStr, args, err := builder.BuildSelect(documentTable, where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.dialect, sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []model.Document
	for rows.Next() {
		var doc model.Document
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.IndexLocation, &doc.ExternalRef, &doc.Ctime); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ListIndexLocations returns every index location referenced by a record.
func (r *DocumentRepo) ListIndexLocations(ctx context.Context) (map[string]struct{}, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	sqlStr, args, err := builder.BuildSelect(documentTable, map[string]interface{}{}, []string{"index_location"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.dialect, sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var location string
		if err := rows.Scan(&location); err != nil {
			return nil, err
		}
		out[location] = struct{}{}
	}
	return out, rows.Err()
}
