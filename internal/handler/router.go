package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Documents     *DocumentHandler
	Ask           *AskHandler
	Conversations *ConversationHandler
	Files         *FileHandler
	Health        *HealthHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/healthz", deps.Health.Check)

	api.POST("/documents", deps.Documents.Upload)
	api.GET("/documents", deps.Documents.List)
	api.GET("/documents/:id", deps.Documents.Get)

	api.POST("/ask", deps.Ask.Ask)

	api.GET("/conversations/:session", deps.Conversations.Get)
	api.DELETE("/conversations/:session", deps.Conversations.Delete)

	api.GET("/files/:key", deps.Files.Get)
}
