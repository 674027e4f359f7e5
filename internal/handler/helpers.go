package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/ai"
	"github.com/xxxsen/docqa/internal/middleware"
	"github.com/xxxsen/docqa/internal/pkg/errcode"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
	"github.com/xxxsen/docqa/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get(middleware.ContextRequestIDKey)
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case appErr.IsNotFound(err):
		response.Error(c, errcode.ErrNotFound, "document not found")
	case appErr.IsIndexNotFound(err):
		response.Error(c, errcode.ErrIndexNotFound, "document index unavailable")
	case appErr.IsInvalid(err):
		response.Error(c, errcode.ErrInvalid, invalidMessage(err))
	case appErr.IsDuplicateID(err):
		response.Error(c, errcode.ErrConflict, "conflict")
	case appErr.IsEmbeddingFailure(err):
		response.Error(c, errcode.ErrEmbeddingFailure, "embedding failed")
	case errors.Is(err, ai.ErrUnavailable):
		response.Error(c, errcode.ErrAIUnavailable, "ai provider unavailable")
	case appErr.IsGenerationFailure(err):
		response.Error(c, errcode.ErrGenerationFailure, "answer generation failed")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}

// invalidMessage surfaces the reason attached to an ErrInvalid, which is
// always safe to show to the caller.
func invalidMessage(err error) string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			if e != appErr.ErrInvalid {
				return e.Error()
			}
		}
	}
	return "invalid request"
}

func queryUint(c *gin.Context, key string) uint {
	value := c.Query(key)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0
	}
	return uint(parsed)
}

func requestBaseURL(c *gin.Context) string {
	proto := c.GetHeader("X-Forwarded-Proto")
	if proto == "" {
		if c.Request.TLS != nil {
			proto = "https"
		} else {
			proto = "http"
		}
	}
	host := c.GetHeader("X-Forwarded-Host")
	if host == "" {
		host = c.Request.Host
	}
	return proto + "://" + host
}
