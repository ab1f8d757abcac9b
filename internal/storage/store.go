// Package storage keeps note attachments on the public disk and cleans up files
// whose owning write failed.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"tasknotes/pkg/metrics"
)

// AttachmentsDir is the directory, relative to the public root, that holds attachments.
const AttachmentsDir = "attachments"

var ErrInvalidPath = errors.New("invalid attachment path")

// Store persists attachment bytes. NewPath names a file relative to the public
// root ("attachments/<id>.pdf") without writing anything; Put writes to such a
// path and Delete succeeds when the file is already gone.
type Store interface {
	NewPath(filename string) string
	Put(ctx context.Context, storedPath string, r io.Reader) error
	Delete(ctx context.Context, storedPath string) error
}

// LocalStore writes attachments under <root>/public/attachments.
type LocalStore struct {
	publicDir string
}

func NewLocalStore(root string) (*LocalStore, error) {
	publicDir := filepath.Join(root, "public")
	if err := os.MkdirAll(filepath.Join(publicDir, AttachmentsDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create attachments dir: %w", err)
	}
	return &LocalStore{publicDir: publicDir}, nil
}

// PublicDir is the directory served to clients.
func (s *LocalStore) PublicDir() string {
	return s.publicDir
}

// NewPath returns a unique stored path keeping filename's extension.
func (s *LocalStore) NewPath(filename string) string {
	return path.Join(AttachmentsDir, uuid.NewString()+sanitizeExt(filename))
}

// Put writes r to storedPath. The file only appears under that name once fully
// written.
func (s *LocalStore) Put(ctx context.Context, storedPath string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(storedPath)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write attachment: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close attachment: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("failed to move attachment into place: %w", err)
	}

	metrics.ObserveAttachmentStored(n)
	return nil
}

func (s *LocalStore) Delete(ctx context.Context, storedPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(storedPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", storedPath, err)
	}
	return nil
}

// resolve maps a stored path to the filesystem, refusing anything outside the
// attachments directory.
func (s *LocalStore) resolve(storedPath string) (string, error) {
	clean := path.Clean(storedPath)
	if clean != storedPath || path.Dir(clean) != AttachmentsDir {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, storedPath)
	}
	return filepath.Join(s.publicDir, filepath.FromSlash(clean)), nil
}

// sanitizeExt keeps a short alphanumeric extension, lowercased.
func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 || len(ext) > 16 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}
