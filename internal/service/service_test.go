package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docqa/internal/ai"
	"github.com/xxxsen/docqa/internal/chunker"
	"github.com/xxxsen/docqa/internal/config"
	"github.com/xxxsen/docqa/internal/conversation"
	"github.com/xxxsen/docqa/internal/db"
	"github.com/xxxsen/docqa/internal/filestore"
	"github.com/xxxsen/docqa/internal/index"
	"github.com/xxxsen/docqa/internal/indexcache"
	"github.com/xxxsen/docqa/internal/model"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
	"github.com/xxxsen/docqa/internal/repo"
)

// letterEmbedder maps text to its a-z letter histogram.
type letterEmbedder struct {
	mu     sync.Mutex
	failOn string
}

func (e *letterEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	e.mu.Lock()
	failOn := e.failOn
	e.mu.Unlock()
	if failOn != "" && strings.Contains(text, failOn) {
		return nil, errors.New("embedder down")
	}
	vec := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		}
	}
	// never all-zero
	vec[0] += 0.01
	return vec, nil
}

func (e *letterEmbedder) ModelName() string { return "letters" }

type recordingGenerator struct {
	mu       sync.Mutex
	requests []*ai.GenerateRequest
	err      error
	answer   string
}

func (g *recordingGenerator) Generate(ctx context.Context, req *ai.GenerateRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return "", g.err
	}
	if g.answer != "" {
		return g.answer, nil
	}
	return "answer to " + req.Question, nil
}

func (g *recordingGenerator) last() *ai.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.requests) == 0 {
		return nil
	}
	return g.requests[len(g.requests)-1]
}

type countingLoader struct {
	next  indexcache.Loader
	calls atomic.Int32
}

func (l *countingLoader) Load(ctx context.Context, docID string) (*index.Index, error) {
	l.calls.Add(1)
	return l.next.Load(ctx, docID)
}

type testEnv struct {
	docs   *repo.DocumentRepo
	store  *index.SQLiteStore
	loader *countingLoader
	cache  *indexcache.Cache
	emb    *letterEmbedder
	gen    *recordingGenerator
	ingest *IngestService
	answer *AnswerService
	dir    string
}

func newTestEnv(t *testing.T, size, overlap int) *testEnv {
	t.Helper()
	dir := t.TempDir()
	sqlDB, dialect, err := db.Open(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(dir, "registry.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.ApplyMigrations(sqlDB))

	store, err := index.NewSQLiteStore(filepath.Join(dir, "indexes"))
	require.NoError(t, err)
	c, err := chunker.New(size, overlap)
	require.NoError(t, err)

	env := &testEnv{
		docs:  repo.NewDocumentRepo(sqlDB, dialect),
		store: store,
		emb:   &letterEmbedder{},
		gen:   &recordingGenerator{},
		dir:   dir,
	}
	env.loader = &countingLoader{next: indexcache.NewRegistryLoader(env.docs, store)}
	env.cache = indexcache.New(env.loader, 0)
	env.ingest = NewIngestService(env.docs, c, index.NewBuilder(env.emb, 2), store, env.cache, nil)
	env.answer = NewAnswerService(env.cache, env.emb, env.gen, 4)
	return env
}

func TestEndToEndAlphaBetaGamma(t *testing.T) {
	env := newTestEnv(t, 10, 2)
	ctx := context.Background()

	doc, err := env.ingest.Ingest(ctx, IngestInput{Filename: "greek.txt", Text: "Alpha. Beta. Gamma."})
	require.NoError(t, err)
	require.NotEmpty(t, doc.ID)
	require.Equal(t, "greek.txt", doc.Filename)
	require.NotZero(t, doc.Ctime)

	idx, ok := env.cache.Get(doc.ID)
	require.True(t, ok)
	require.Equal(t, 3, idx.Len())

	hist := conversation.NewHistory(3, 50)
	tx, err := env.answer.Answer(ctx, hist, doc.ID, "What follows Alpha?")
	require.NoError(t, err)
	require.Equal(t, doc.ID, tx.DocumentID)
	require.Equal(t, "What follows Alpha?", tx.Question)
	require.Equal(t, "answer to What follows Alpha?", tx.Answer)
	require.Len(t, tx.Context, 3)

	req := env.gen.last()
	require.Equal(t, "Use the supplied context to answer the question.", req.Instruction)
	require.Equal(t, strings.Join(tx.Context, "\n\n---\n\n"), req.Context)
	require.Empty(t, req.History)
	require.Equal(t, []model.Turn{{Question: "What follows Alpha?", Answer: tx.Answer}}, hist.Turns())

	// fresh ingest is served from the cache
	require.Zero(t, env.loader.calls.Load())
}

// At size 10 / overlap 2 the word "Beta" is split across the first two
// chunks, so the context carries its fragments rather than the whole word.
func TestWhatIsBetaScenario(t *testing.T) {
	env := newTestEnv(t, 10, 2)
	env.gen.answer = "Beta is the second term."
	ctx := context.Background()

	doc, err := env.ingest.Ingest(ctx, IngestInput{Filename: "greek.txt", Text: "Alpha. Beta. Gamma."})
	require.NoError(t, err)

	tx, err := env.answer.Answer(ctx, conversation.NewHistory(3, 50), doc.ID, "What is Beta?")
	require.NoError(t, err)
	require.Equal(t, model.AnswerTransaction{
		DocumentID: doc.ID,
		Question:   "What is Beta?",
		Answer:     "Beta is the second term.",
	}, model.AnswerTransaction{DocumentID: tx.DocumentID, Question: tx.Question, Answer: tx.Answer})

	require.ElementsMatch(t, []string{"Alpha. Bet", "eta. Gamma", "ma."}, tx.Context)
	req := env.gen.last()
	require.Contains(t, req.Context, "Alpha. Bet")
	require.Contains(t, req.Context, "eta. Gamma")
}

func TestAnswerUnknownDocument(t *testing.T) {
	env := newTestEnv(t, 10, 2)
	hist := conversation.NewHistory(3, 50)
	hist.Append(model.Turn{Question: "q", Answer: "a"})

	_, err := env.answer.Answer(context.Background(), hist, "unknown-id", "anything?")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.Equal(t, 1, hist.Len())
	require.Nil(t, env.gen.last())
	require.Zero(t, env.cache.Len())
}

func TestHistoryWindowIsBounded(t *testing.T) {
	env := newTestEnv(t, 10, 2)
	ctx := context.Background()
	doc, err := env.ingest.Ingest(ctx, IngestInput{Filename: "a.txt", Text: "Alpha. Beta. Gamma."})
	require.NoError(t, err)

	hist := conversation.NewHistory(3, 50)
	questions := []string{"one?", "two?", "three?", "four?", "five?"}
	for _, q := range questions {
		_, err := env.answer.Answer(ctx, hist, doc.ID, q)
		require.NoError(t, err)
		require.LessOrEqual(t, len(env.gen.last().History), 3)
	}
	last := env.gen.last()
	require.Equal(t, []string{"two?", "three?", "four?"}, []string{
		last.History[0].Question, last.History[1].Question, last.History[2].Question,
	})
	require.Equal(t, 5, hist.Len())
}

func TestDocumentIsolation(t *testing.T) {
	env := newTestEnv(t, 8, 2)
	ctx := context.Background()
	textA := "aaaa aaaa aaaa aaaa aaaa"
	textB := "bbbb bbbb bbbb bbbb bbbb"
	docA, err := env.ingest.Ingest(ctx, IngestInput{Filename: "a.txt", Text: textA})
	require.NoError(t, err)
	_, err = env.ingest.Ingest(ctx, IngestInput{Filename: "b.txt", Text: textB})
	require.NoError(t, err)

	tx, err := env.answer.Answer(ctx, conversation.NewHistory(3, 50), docA.ID, "bbbb?")
	require.NoError(t, err)
	require.NotEmpty(t, tx.Context)
	for _, c := range tx.Context {
		require.Contains(t, textA, c)
		require.NotContains(t, c, "b")
	}
}

func TestFailedIngestLeavesNoRecord(t *testing.T) {
	env := newTestEnv(t, 10, 2)
	ctx := context.Background()
	env.emb.failOn = "Gamma"

	_, err := env.ingest.Ingest(ctx, IngestInput{Filename: "a.txt", Text: "Alpha. Beta. Gamma."})
	require.ErrorIs(t, err, appErr.ErrEmbeddingFailure)

	docs, err := env.docs.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Empty(t, docs)
	stored, err := env.store.List(ctx)
	require.NoError(t, err)
	require.Empty(t, stored)
	require.Zero(t, env.cache.Len())
}

func TestIngestRejectsEmptyText(t *testing.T) {
	env := newTestEnv(t, 10, 2)
	_, err := env.ingest.Ingest(context.Background(), IngestInput{Filename: "a.txt", Text: " \n\t"})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = env.ingest.Ingest(context.Background(), IngestInput{Text: "text"})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestGenerationFailureKeepsHistory(t *testing.T) {
	env := newTestEnv(t, 10, 2)
	ctx := context.Background()
	doc, err := env.ingest.Ingest(ctx, IngestInput{Filename: "a.txt", Text: "Alpha. Beta. Gamma."})
	require.NoError(t, err)

	env.gen.err = context.DeadlineExceeded
	hist := conversation.NewHistory(3, 50)
	_, err = env.answer.Answer(ctx, hist, doc.ID, "What follows Alpha?")
	require.ErrorIs(t, err, appErr.ErrGenerationFailure)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Zero(t, hist.Len())
}

func TestAnswerAfterRestartLoadsOnce(t *testing.T) {
	env := newTestEnv(t, 10, 2)
	ctx := context.Background()
	doc, err := env.ingest.Ingest(ctx, IngestInput{Filename: "a.txt", Text: "Alpha. Beta. Gamma."})
	require.NoError(t, err)

	loader := &countingLoader{next: indexcache.NewRegistryLoader(env.docs, env.store)}
	restarted := NewAnswerService(indexcache.New(loader, 0), env.emb, env.gen, 4)
	hist := conversation.NewHistory(3, 50)
	for i := 0; i < 3; i++ {
		_, err := restarted.Answer(ctx, hist, doc.ID, "Beta?")
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, loader.calls.Load())
}

type failingCreateStore struct {
	documentStore
}

func (f failingCreateStore) Create(ctx context.Context, doc *model.Document) error {
	return errors.New("disk full")
}

func TestInsertFailureLeavesReclaimableOrphan(t *testing.T) {
	env := newTestEnv(t, 10, 2)
	ctx := context.Background()
	c, err := chunker.New(10, 2)
	require.NoError(t, err)
	ingest := NewIngestService(failingCreateStore{env.docs}, c, index.NewBuilder(env.emb, 1), env.store, env.cache, nil)

	_, err = ingest.Ingest(ctx, IngestInput{Filename: "a.txt", Text: "Alpha. Beta. Gamma."})
	require.Error(t, err)
	require.Zero(t, env.cache.Len())

	kept, err := env.ingest.Ingest(ctx, IngestInput{Filename: "b.txt", Text: "Delta."})
	require.NoError(t, err)

	sweeper := NewOrphanSweeper(env.docs, env.store, time.Hour)
	orphans, err := sweeper.Find(ctx)
	require.NoError(t, err)
	require.Empty(t, orphans)

	sweeper.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	orphans, err = sweeper.Find(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	require.NotEqual(t, kept.IndexLocation, orphans[0].Location)

	removed, err := sweeper.Reclaim(ctx)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	stored, err := env.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, kept.IndexLocation, stored[0].Location)
}

func TestIngestKeepsRawFile(t *testing.T) {
	env := newTestEnv(t, 10, 2)
	files, err := filestore.New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": filepath.Join(env.dir, "files")}})
	require.NoError(t, err)
	c, err := chunker.New(10, 2)
	require.NoError(t, err)
	ingest := NewIngestService(env.docs, c, index.NewBuilder(env.emb, 1), env.store, env.cache, files)

	doc, err := ingest.Ingest(context.Background(), IngestInput{
		Filename: "Notes.TXT",
		Text:     "Alpha.",
		Raw:      []byte("Alpha."),
		BaseURL:  "http://localhost:8000",
	})
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000/api/v1/files/"+doc.ID+".txt", doc.ExternalRef)

	got, err := NewDocumentService(env.docs).Get(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, doc.ExternalRef, got.ExternalRef)
}

func TestBlankQuestionRejected(t *testing.T) {
	env := newTestEnv(t, 10, 2)
	_, err := env.answer.Answer(context.Background(), conversation.NewHistory(3, 50), "x", "  ")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

// stuckLoadStore is a persisted store whose reads hang until cancelled.
type stuckLoadStore struct {
	index.Store
}

func (s stuckLoadStore) Load(ctx context.Context, location string) (*index.Index, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAnswerAfterRestartWithHungStoreFails(t *testing.T) {
	env := newTestEnv(t, 10, 2)
	ctx := context.Background()
	doc, err := env.ingest.Ingest(ctx, IngestInput{Filename: "a.txt", Text: "Alpha. Beta. Gamma."})
	require.NoError(t, err)

	store := index.WithTimeout(stuckLoadStore{env.store}, 50*time.Millisecond)
	restarted := NewAnswerService(indexcache.New(indexcache.NewRegistryLoader(env.docs, store), 0), env.emb, env.gen, 4)
	hist := conversation.NewHistory(3, 50)

	done := make(chan error, 1)
	go func() {
		_, err := restarted.Answer(context.Background(), hist, doc.ID, "What is Beta?")
		done <- err
	}()
	select {
	case err := <-done:
		require.ErrorIs(t, err, appErr.ErrIndexNotFound)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(3 * time.Second):
		t.Fatal("answer did not return after the store deadline")
	}
	require.Zero(t, hist.Len())
	require.Nil(t, env.gen.last())
}

func newFileIngest(t *testing.T, env *testEnv, docs documentStore) (*IngestService, string) {
	t.Helper()
	dir := filepath.Join(env.dir, "files")
	files, err := filestore.New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": dir}})
	require.NoError(t, err)
	c, err := chunker.New(10, 2)
	require.NoError(t, err)
	return NewIngestService(docs, c, index.NewBuilder(env.emb, 1), env.store, env.cache, files), dir
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestFailedBuildKeepsNoRawFile(t *testing.T) {
	env := newTestEnv(t, 10, 2)
	ingest, dir := newFileIngest(t, env, env.docs)
	env.emb.failOn = "Gamma"

	_, err := ingest.Ingest(context.Background(), IngestInput{Filename: "a.txt", Text: "Alpha. Beta. Gamma.", Raw: []byte("Alpha. Beta. Gamma.")})
	require.ErrorIs(t, err, appErr.ErrEmbeddingFailure)
	require.Empty(t, listFiles(t, dir))
}

func TestInsertFailureRemovesRawFile(t *testing.T) {
	env := newTestEnv(t, 10, 2)
	ingest, dir := newFileIngest(t, env, failingCreateStore{env.docs})

	_, err := ingest.Ingest(context.Background(), IngestInput{Filename: "a.txt", Text: "Alpha.", Raw: []byte("Alpha.")})
	require.Error(t, err)
	require.Empty(t, listFiles(t, dir))
}
