package core

import (
	"context"
	"io"
)

// ErrFileExists is returned by FileStorage.Save when the path is already taken.
var ErrFileExists = NewConflictError("file already exists")

// FileStorage stores uploaded documents under slash separated relative paths.
type FileStorage interface {
	Save(ctx context.Context, path string, r io.Reader) error
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}
