// Package extract turns uploaded files into plain text.
package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

type Extractor interface {
	Extract(filename string, raw []byte) (string, error)
}

var registry = map[string]Extractor{}

func Register(ext string, e Extractor) {
	key := strings.ToLower(strings.TrimSpace(ext))
	if key == "" || e == nil {
		return
	}
	registry[key] = e
}

// Supported reports whether a file name has a registered extension.
func Supported(filename string) bool {
	_, ok := registry[strings.ToLower(filepath.Ext(filename))]
	return ok
}

func Extensions() []string {
	out := make([]string, 0, len(registry))
	for ext := range registry {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract dispatches on the file extension.
func Extract(filename string, raw []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	e, ok := registry[ext]
	if !ok {
		return "", appErr.Wrap(appErr.ErrInvalid, fmt.Errorf("unsupported file type %q", ext))
	}
	return e.Extract(filename, raw)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func decodeUTF8(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		return "", appErr.Wrap(appErr.ErrInvalid, fmt.Errorf("file is not valid utf-8 text"))
	}
	return string(raw), nil
}
