package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/ai"
	"github.com/xxxsen/docqa/internal/conversation"
	"github.com/xxxsen/docqa/internal/indexcache"
	"github.com/xxxsen/docqa/internal/model"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

const (
	answerInstruction = "Use the supplied context to answer the question."
	contextSeparator  = "\n\n---\n\n"
)

type AnswerService struct {
	cache     *indexcache.Cache
	embedder  ai.IEmbedder
	generator ai.IGenerator
	topK      int
}

func NewAnswerService(cache *indexcache.Cache, embedder ai.IEmbedder, generator ai.IGenerator, topK int) *AnswerService {
	return &AnswerService{
		cache:     cache,
		embedder:  embedder,
		generator: generator,
		topK:      topK,
	}
}

// Answer retrieves the chunks of docID most similar to question and asks the
// generator, passing the recent turns of hist. hist is only touched when an
// answer is produced.
func (s *AnswerService) Answer(ctx context.Context, hist *conversation.History, docID, question string) (*model.AnswerTransaction, error) {
	if strings.TrimSpace(question) == "" {
		return nil, appErr.Wrap(appErr.ErrInvalid, fmt.Errorf("question is required"))
	}
	start := time.Now()
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", docID))

	idx, err := s.cache.GetOrLoad(ctx, docID)
	if err != nil {
		logger.Warn("resolve document index failed", zap.Error(err))
		return nil, err
	}
	hits, err := idx.Search(ctx, s.embedder, question, s.topK)
	if err != nil {
		logger.Error("search index failed", zap.Error(err))
		return nil, err
	}
	contexts := make([]string, 0, len(hits))
	for _, hit := range hits {
		contexts = append(contexts, hit.Content)
	}

	req := &ai.GenerateRequest{
		Instruction: answerInstruction,
		Context:     strings.Join(contexts, contextSeparator),
		History:     hist.Window(),
		Question:    question,
	}
	answer, err := s.generator.Generate(ctx, req)
	if err != nil {
		logger.Error("generate answer failed", zap.Error(err))
		return nil, appErr.Wrap(appErr.ErrGenerationFailure, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, appErr.Wrap(appErr.ErrGenerationFailure, fmt.Errorf("empty answer"))
	}

	hist.Append(model.Turn{Question: question, Answer: answer})
	logger.Info("question answered",
		zap.Int("contexts", len(contexts)),
		zap.Int("history_turns", len(req.History)),
		zap.Duration("cost", time.Since(start)),
	)
	return &model.AnswerTransaction{
		DocumentID: docID,
		Question:   question,
		Context:    contexts,
		Answer:     answer,
	}, nil
}
