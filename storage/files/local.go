// Package files stores uploaded documents.
package files

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/bursary/core"
)

var errUnsafePath = errors.New("path escapes the storage root")

// LocalStorage keeps files under a root directory of the local file system.
type LocalStorage struct {
	root     string
	maxBytes int64
}

var _ core.FileStorage = (*LocalStorage)(nil)

// NewLocalStorage stores under root; maxBytes <= 0 disables the size limit.
func NewLocalStorage(root string, maxBytes int64) *LocalStorage {
	return &LocalStorage{root: root, maxBytes: maxBytes}
}

func (s *LocalStorage) resolve(p string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(p))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errUnsafePath
	}
	return filepath.Join(s.root, clean), nil
}

func (s *LocalStorage) Save(_ context.Context, p string, r io.Reader) error {
	fp, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return errors.Wrap(err, "creating directory")
	}

	f, err := os.OpenFile(fp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		return core.ErrFileExists
	}
	if err != nil {
		return errors.Wrap(err, "creating file")
	}
	if s.maxBytes > 0 {
		r = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = core.NewValidationError(errors.New("file is too large"),
			core.FieldError{Field: "proof_document", Error: "file is too large"})
	}
	if err != nil {
		_ = os.Remove(fp)
		return err
	}
	return nil
}

func (s *LocalStorage) Open(_ context.Context, p string) (io.ReadCloser, error) {
	fp, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fp)
	if os.IsNotExist(err) {
		return nil, core.NewNotFoundError("file not found")
	}
	return f, err
}

func (s *LocalStorage) Delete(_ context.Context, p string) error {
	fp, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err = os.Remove(fp); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
