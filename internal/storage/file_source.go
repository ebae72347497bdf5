package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/tendant/simple-generation-pipeline/internal/media"
)

// FileSource serves file://<relative path> inputs from a local directory
type FileSource struct {
	baseDir string
}

// NewFileSource creates a file source rooted at baseDir
func NewFileSource(baseDir string) (*FileSource, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	return &FileSource{baseDir: abs}, nil
}

// resolve maps a file URI to a path inside baseDir
func (fs *FileSource) resolve(uri string) (string, error) {
	key, err := keyFromURI(uri, SchemeFile)
	if err != nil {
		return "", err
	}

	path := filepath.Join(fs.baseDir, filepath.FromSlash(key))

	// Security: prevent directory traversal
	if path != fs.baseDir && !strings.HasPrefix(path, fs.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path traversal detected", ErrInvalidURI)
	}

	return path, nil
}

// Probe stats the file and sniffs its type from the leading bytes
func (fs *FileSource) Probe(_ context.Context, uri string) (media.Probe, error) {
	path, err := fs.resolve(uri)
	if err != nil {
		return media.Probe{}, fmt.Errorf("%w: %w", media.ErrProbeFailed, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return media.Probe{}, fmt.Errorf("%w: file not found: %s", media.ErrProbeFailed, uri)
		}
		return media.Probe{}, fmt.Errorf("%w: failed to stat file: %w", media.ErrProbeFailed, err)
	}
	if info.IsDir() {
		return media.Probe{}, fmt.Errorf("%w: %s is a directory", media.ErrProbeFailed, uri)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return media.Probe{}, fmt.Errorf("%w: failed to detect type: %w", media.ErrProbeFailed, err)
	}

	return media.Probe{
		ContentType:   mt.String(),
		ContentLength: info.Size(),
	}, nil
}

// Open opens the file for reading
func (fs *FileSource) Open(_ context.Context, uri string) (io.ReadCloser, error) {
	path, err := fs.resolve(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", media.ErrDownloadFailed, err)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open file: %w", media.ErrDownloadFailed, err)
	}

	return file, nil
}
