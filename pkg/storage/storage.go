// Package storage persists converted radiographs and sweeps stale files.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
)

// IStorage saves an object and returns the URL clients should fetch it from.
type IStorage interface {
	Save(ctx context.Context, name string, contentType string, data []byte) (string, error)
}

type localStorage struct {
	dir       string
	urlPrefix string
}

// NewLocal stores files in dir and serves them under urlPrefix, which must
// match the static mount of the HTTP server.
func NewLocal(dir string, urlPrefix string) (IStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir %s: %w", dir, err)
	}

	return &localStorage{
		dir:       dir,
		urlPrefix: urlPrefix,
	}, nil
}

func (l *localStorage) Save(ctx context.Context, name string, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid object name %q", name)
	}

	if err := os.WriteFile(filepath.Join(l.dir, base), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", base, err)
	}

	return path.Join(l.urlPrefix, base), nil
}
