package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

// pdfText pulls the text layer out of a PDF. Scanned pages without one
// yield nothing, which ingestion then rejects as empty.
type pdfText struct{}

func (pdfText) Extract(filename string, raw []byte) (text string, err error) {
	// the parser panics on some malformed object streams
	defer func() {
		if r := recover(); r != nil {
			text, err = "", appErr.Wrap(appErr.ErrInvalid, fmt.Errorf("unreadable pdf %s: %v", filename, r))
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", appErr.Wrap(appErr.ErrInvalid, fmt.Errorf("open pdf %s: %w", filename, err))
	}
	body, err := reader.GetPlainText()
	if err != nil {
		return "", appErr.Wrap(appErr.ErrInvalid, fmt.Errorf("read pdf %s: %w", filename, err))
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", appErr.Wrap(appErr.ErrInvalid, fmt.Errorf("read pdf %s: %w", filename, err))
	}
	return strings.TrimSpace(string(data)), nil
}

func init() {
	Register(".pdf", pdfText{})
}
