// Package storage keeps uploaded document bytes behind an opaque locator.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates no object exists for the locator.
	ErrNotFound = errors.New("stored object not found")
	// ErrInvalidLocator indicates the locator cannot address an object of this store.
	ErrInvalidLocator = errors.New("invalid storage locator")
)

// Storage fetches, stores and deletes raw document bytes.
type Storage interface {
	Fetch(ctx context.Context, locator string) (io.ReadCloser, error)
	Store(ctx context.Context, name string, reader io.Reader) (string, error)
	Delete(ctx context.Context, locator string) error
}

// SanitizeName lower-cases name and replaces anything outside [a-z0-9-_] in the base name.
func SanitizeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" || base == "." {
		base = "document"
	}
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}

func uniqueName(name string) string {
	return fmt.Sprintf("%s-%s", uuid.NewString(), SanitizeName(name))
}
