package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Local stores documents as files below a root directory. Locators are file names relative to
// the root.
type Local struct {
	root   string
	logger zerolog.Logger
}

// NewLocal prepares root and returns a disk backed store.
func NewLocal(root string, logger zerolog.Logger) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage root must be provided")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Local{
		root:   abs,
		logger: logger.With().Str("component", "local_storage").Logger(),
	}, nil
}

func (l *Local) Store(ctx context.Context, name string, reader io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	locator := uniqueName(name)
	file, err := os.OpenFile(filepath.Join(l.root, locator), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("create stored file: %w", err)
	}

	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("write stored file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("close stored file: %w", err)
	}

	l.logger.Debug().Str("locator", locator).Msg("document stored on disk")
	return locator, nil
}

func (l *Local) Fetch(ctx context.Context, locator string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := l.resolve(locator)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	if err != nil {
		return nil, fmt.Errorf("open stored file: %w", err)
	}
	return file, nil
}

func (l *Local) Delete(ctx context.Context, locator string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := l.resolve(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stored file: %w", err)
	}
	return nil
}

func (l *Local) resolve(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" || locator != filepath.Base(locator) || locator == "." || locator == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	return filepath.Join(l.root, locator), nil
}
