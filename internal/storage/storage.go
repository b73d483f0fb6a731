package storage

import (
	"context"

	"github.com/dev-tams/newsdrop/internal/storage/remote"
)

type Entry = remote.Entry

var ErrFolderNotFound = remote.ErrFolderNotFound

// Store is a remote document folder tree.
type Store interface {
	Name() string
	List(ctx context.Context, folder string) ([]Entry, error)
	Mkdir(ctx context.Context, folder string) error
	// Put uploads localPath into folder under remote.DocumentName(localPath).
	Put(ctx context.Context, localPath, folder string) error
	Remove(ctx context.Context, folder, name string) error
}

// Authenticator is implemented by stores that need a one-time device
// registration before use.
type Authenticator interface {
	Authenticated(ctx context.Context) (bool, error)
	Register(ctx context.Context, token string) error
}
