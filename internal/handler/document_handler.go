package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docqa/internal/extract"
	"github.com/xxxsen/docqa/internal/model"
	"github.com/xxxsen/docqa/internal/pkg/errcode"
	"github.com/xxxsen/docqa/internal/pkg/response"
	"github.com/xxxsen/docqa/internal/service"
)

type DocumentHandler struct {
	documents *service.DocumentService
	ingest    *service.IngestService
	maxBytes  int64
}

func NewDocumentHandler(documents *service.DocumentService, ingest *service.IngestService, maxBytes int64) *DocumentHandler {
	return &DocumentHandler{documents: documents, ingest: ingest, maxBytes: maxBytes}
}

type documentResponse struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	Timestamp   int64  `json:"timestamp"`
	ExternalRef string `json:"external_ref,omitempty"`
}

func toDocumentResponse(doc *model.Document) documentResponse {
	return documentResponse{
		ID:          doc.ID,
		Filename:    doc.Filename,
		Timestamp:   doc.Ctime,
		ExternalRef: doc.ExternalRef,
	}
}

// Upload ingests a multipart "file" field.
func (h *DocumentHandler) Upload(c *gin.Context) {
	if h.maxBytes > 0 {
		// leave room for the multipart framing around the file
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1024*1024)
	}
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Fail(c, http.StatusRequestEntityTooLarge, errcode.ErrInvalidFile, "file exceeds "+formatUploadLimit(h.maxBytes))
			return
		}
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if h.maxBytes > 0 && file.Size > h.maxBytes {
		response.Fail(c, http.StatusRequestEntityTooLarge, errcode.ErrInvalidFile, "file exceeds "+formatUploadLimit(h.maxBytes))
		return
	}
	if !extract.Supported(file.Filename) {
		response.Error(c, errcode.ErrInvalidFile, "unsupported file type, expected one of "+strings.Join(extract.Extensions(), ", "))
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()
	raw, err := io.ReadAll(opened)
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to read file")
		return
	}
	text, err := extract.Extract(file.Filename, raw)
	if err != nil {
		handleError(c, err)
		return
	}
	doc, err := h.ingest.Ingest(c.Request.Context(), service.IngestInput{
		Filename: file.Filename,
		Text:     text,
		Raw:      raw,
		BaseURL:  requestBaseURL(c),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, toDocumentResponse(doc))
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documents.List(c.Request.Context(), queryUint(c, "offset"), queryUint(c, "limit"))
	if err != nil {
		handleError(c, err)
		return
	}
	out := make([]documentResponse, 0, len(docs))
	for i := range docs {
		out = append(out, toDocumentResponse(&docs[i]))
	}
	response.Success(c, out)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, toDocumentResponse(doc))
}
