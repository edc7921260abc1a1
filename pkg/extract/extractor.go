// Package extract converts stored document bytes into plain text.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
)

// Declared MIME types accepted by the extractor.
const (
	MimeTypePDF  = "application/pdf"
	MimeTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeTypeText = "text/plain"
)

// DefaultMaxBytes bounds the amount of content read from a single document.
const DefaultMaxBytes int64 = 10 * 1024 * 1024

var (
	// ErrUnsupportedFileType indicates the declared MIME type cannot be extracted.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrCorruptContent indicates the bytes do not match the declared format.
	ErrCorruptContent = errors.New("document content could not be decoded")
	// ErrContentTooLarge indicates the document exceeds the configured read limit.
	ErrContentTooLarge = errors.New("document content too large")
)

// Extractor turns PDF, DOCX and plain-text bytes into text.
type Extractor struct {
	maxBytes int64
}

// New returns an Extractor that reads at most maxBytes per document.
func New(maxBytes int64) *Extractor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Extractor{maxBytes: maxBytes}
}

// NormalizeMimeType lower-cases the type and drops parameters such as charset.
func NormalizeMimeType(declared string) string {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		mediaType = declared
		if idx := strings.Index(mediaType, ";"); idx >= 0 {
			mediaType = mediaType[:idx]
		}
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// Supports reports whether the declared MIME type can be extracted.
func Supports(declared string) bool {
	switch NormalizeMimeType(declared) {
	case MimeTypePDF, MimeTypeDOCX, MimeTypeText:
		return true
	default:
		return false
	}
}

// Extract reads r fully and returns its text according to the declared MIME type.
// Unsupported types fail before any byte is read.
func (e *Extractor) Extract(ctx context.Context, r io.Reader, declared string) (string, error) {
	mediaType := NormalizeMimeType(declared)
	if !Supports(mediaType) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, declared)
	}

	content, err := e.readAll(r)
	if err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch mediaType {
	case MimeTypePDF:
		return extractPDF(ctx, content, e.maxBytes)
	case MimeTypeDOCX:
		return extractDOCX(content, e.maxBytes)
	default:
		return extractPlain(content), nil
	}
}

func (e *Extractor) readAll(r io.Reader) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(r, e.maxBytes+1)); err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if int64(buf.Len()) > e.maxBytes {
		return nil, ErrContentTooLarge
	}
	return buf.Bytes(), nil
}
