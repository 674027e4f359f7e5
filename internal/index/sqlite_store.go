package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/xxxsen/docqa/internal/model"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

const (
	indexFileExt = ".idx"
	tmpMarker    = ".tmp-"
)

const sqliteIndexSchema = `
CREATE TABLE meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE chunks (
	position INTEGER PRIMARY KEY,
	content TEXT NOT NULL,
	embedding BLOB NOT NULL
);
`

// SQLiteStore keeps every index in its own sqlite file under dir.
type SQLiteStore struct {
	dir string
}

func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("index dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	return &SQLiteStore{dir: dir}, nil
}

func (s *SQLiteStore) Location(docID string) string {
	return filepath.Join(s.dir, docID+indexFileExt)
}

func (s *SQLiteStore) Persist(ctx context.Context, idx *Index, location string) error {
	tmp, err := os.CreateTemp(filepath.Dir(location), filepath.Base(location)+tmpMarker+"*")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()
	if err := writeSQLiteIndex(ctx, tmpPath, idx); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, location); err != nil {
		return fmt.Errorf("rename index into place: %w", err)
	}
	committed = true
	syncDir(filepath.Dir(location))
	return nil
}

func writeSQLiteIndex(ctx context.Context, path string, idx *Index) error {
	db, err := sql.Open("sqlite", path+"?_pragma=synchronous(FULL)")
	if err != nil {
		return fmt.Errorf("open temp index: %w", err)
	}
	defer db.Close()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range strings.Split(sqliteIndexSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index schema: %w", err)
		}
	}
	meta := map[string]string{
		"model":      idx.Model,
		"dim":        strconv.Itoa(idx.Dim),
		"count":      strconv.Itoa(idx.Len()),
		"created_at": strconv.FormatInt(time.Now().Unix(), 10),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, "INSERT INTO meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("write index meta: %w", err)
		}
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO chunks (position, content, embedding) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, chunk := range idx.Chunks {
		if _, err := stmt.ExecContext(ctx, chunk.Position, chunk.Content, encodeVector(idx.Vectors[i])); err != nil {
			return fmt.Errorf("write index chunk %d: %w", chunk.Position, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, location string) (*Index, error) {
	// sqlite would create a missing file on open
	if _, err := os.Stat(location); err != nil {
		return nil, appErr.Wrap(appErr.ErrIndexNotFound, err)
	}
	db, err := sql.Open("sqlite", "file:"+location+"?mode=ro")
	if err != nil {
		return nil, appErr.Wrap(appErr.ErrIndexNotFound, err)
	}
	defer db.Close()
	idx, err := readSQLiteIndex(ctx, db)
	if err != nil {
		return nil, appErr.Wrap(appErr.ErrIndexNotFound, fmt.Errorf("read index %s: %w", location, err))
	}
	return idx, nil
}

func readSQLiteIndex(ctx context.Context, db *sql.DB) (*Index, error) {
	rows, err := db.QueryContext(ctx, "SELECT key, value FROM meta")
	if err != nil {
		return nil, err
	}
	meta := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, err
		}
		meta[k] = v
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	dim, err := strconv.Atoi(meta["dim"])
	if err != nil {
		return nil, fmt.Errorf("invalid meta dim: %w", err)
	}
	count, err := strconv.Atoi(meta["count"])
	if err != nil {
		return nil, fmt.Errorf("invalid meta count: %w", err)
	}

	query, args, err := builder.BuildSelect("chunks", map[string]interface{}{
		"_orderby": "position asc",
	}, []string{"position", "content", "embedding"})
	if err != nil {
		return nil, err
	}
	rows, err = db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	chunks := make([]model.Chunk, 0, count)
	vectors := make([][]float32, 0, count)
	for rows.Next() {
		var (
			chunk model.Chunk
			blob  []byte
		)
		if err := rows.Scan(&chunk.Position, &chunk.Content, &blob); err != nil {
			return nil, err
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(chunks) != count {
		return nil, fmt.Errorf("chunk count mismatch: meta %d, rows %d", count, len(chunks))
	}
	idx, err := New(meta["model"], chunks, vectors)
	if err != nil {
		return nil, err
	}
	if idx.Len() > 0 && idx.Dim != dim {
		return nil, fmt.Errorf("dim mismatch: meta %d, rows %d", dim, idx.Dim)
	}
	return idx, nil
}

func (s *SQLiteStore) Remove(ctx context.Context, location string) error {
	if err := os.Remove(location); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// List reports index files and leftovers of interrupted writes. The file
// modification time stands in for the creation time.
func (s *SQLiteStore) List(ctx context.Context) ([]StoredIndex, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	out := make([]StoredIndex, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.Contains(entry.Name(), indexFileExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			logutil.GetLogger(ctx).Warn("stat index file failed", zap.String("name", entry.Name()), zap.Error(err))
			continue
		}
		out = append(out, StoredIndex{
			Location:  filepath.Join(s.dir, entry.Name()),
			CreatedAt: info.ModTime(),
		})
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return nil
}

func syncDir(dir string) {
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = f.Sync()
	_ = f.Close()
}
