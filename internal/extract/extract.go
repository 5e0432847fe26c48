// Package extract pulls plain text out of uploaded files so they can
// be segmented and embedded.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	appErr "github.com/seenlim/docchat/internal/pkg/errors"
)

var mimeByExt = map[string]string{
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".csv":      "text/csv",
	".pdf":      "application/pdf",
}

var supportedMimeTypes = map[string]bool{
	"text/plain":      true,
	"text/markdown":   true,
	"text/csv":        true,
	"application/pdf": true,
}

func Supported(mimeType string) bool {
	return supportedMimeTypes[normalizeMime(mimeType)]
}

// MimeTypeFor resolves an upload's mime type, preferring the declared
// one and falling back to the file extension.
func MimeTypeFor(declared, filename string) string {
	declared = normalizeMime(declared)
	if supportedMimeTypes[declared] {
		return declared
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if mime, ok := mimeByExt[ext]; ok {
		return mime
	}
	return declared
}

// Text extracts the textual content of a file. Unsupported mime types
// return ErrUnsupportedFile; a file that yields no text at all returns
// ErrEmptyDocument.
func Text(data []byte, mimeType string) (string, error) {
	mimeType = normalizeMime(mimeType)
	var content string
	switch mimeType {
	case "text/plain", "text/markdown", "text/csv":
		content = decodePlain(data)
	case "application/pdf":
		text, err := pdfText(data)
		if err != nil {
			return "", fmt.Errorf("extract pdf text: %w", err)
		}
		content = text
	default:
		return "", appErr.ErrUnsupportedFile
	}
	if strings.TrimSpace(content) == "" {
		return "", appErr.ErrEmptyDocument
	}
	return content, nil
}

func normalizeMime(mimeType string) string {
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}

func decodePlain(data []byte) string {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if !utf8.Valid(data) {
		// Replace invalid sequences instead of failing the upload.
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(data)
}

func pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if _, err := io.Copy(&b, plain); err != nil {
		return "", err
	}
	return b.String(), nil
}
