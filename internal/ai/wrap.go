package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// WithTimeout bounds every Generate call and rejects blank answers.
func WithTimeout(g IGenerator, timeout time.Duration) IGenerator {
	if g == nil {
		return nil
	}
	return &timeoutGenerator{next: g, timeout: timeout}
}

type timeoutGenerator struct {
	next    IGenerator
	timeout time.Duration
}

func (t *timeoutGenerator) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	resp, err := t.next.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}

// WithEmbedTimeout bounds every Embed call.
func WithEmbedTimeout(e IEmbedder, timeout time.Duration) IEmbedder {
	if e == nil || timeout <= 0 {
		return e
	}
	return &timeoutEmbedder{next: e, timeout: timeout}
}

type timeoutEmbedder struct {
	next    IEmbedder
	timeout time.Duration
}

func (t *timeoutEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Embed(ctx, text, taskType)
}

func (t *timeoutEmbedder) ModelName() string {
	return t.next.ModelName()
}

// WithRateLimit throttles calls to the wrapped embedder. A non-positive
// rate disables throttling.
func WithRateLimit(e IEmbedder, perSecond float64, burst int) IEmbedder {
	if e == nil || perSecond <= 0 {
		return e
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimitedEmbedder{next: e, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

type rateLimitedEmbedder struct {
	next    IEmbedder
	limiter *rate.Limiter
}

func (r *rateLimitedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait embed rate limit: %w", err)
	}
	return r.next.Embed(ctx, text, taskType)
}

func (r *rateLimitedEmbedder) ModelName() string {
	return r.next.ModelName()
}
