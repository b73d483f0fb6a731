package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dev-tams/newsdrop/internal/storage/remote"
)

const docExt = ".pdf"

// Storage keeps documents as "<name>.pdf" files under base/<folder>.
type Storage struct {
	base string
}

func New(basePath string) *Storage {
	return &Storage{base: basePath}
}

func (s *Storage) Name() string { return "local:" + s.base }

func (s *Storage) BasePath() string { return s.base }

func (s *Storage) dir(folder string) string {
	return filepath.Join(s.base, filepath.FromSlash(folder))
}

func (s *Storage) List(_ context.Context, folder string) ([]remote.Entry, error) {
	entries, err := os.ReadDir(s.dir(folder))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", remote.ErrFolderNotFound, folder)
		}
		return nil, fmt.Errorf("list dir: %w", err)
	}

	out := make([]remote.Entry, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			out = append(out, remote.Entry{Name: name})
			continue
		}
		// Only documents are candidates; this also hides in-flight .tmp uploads.
		doc, ok := strings.CutSuffix(name, docExt)
		if !ok || doc == "" {
			continue
		}
		out = append(out, remote.Entry{IsFile: true, Name: doc})
	}
	return out, nil
}

func (s *Storage) Mkdir(_ context.Context, folder string) error {
	if err := os.MkdirAll(s.dir(folder), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	return nil
}

func (s *Storage) Put(_ context.Context, localPath, folder string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer src.Close()

	finalPath := filepath.Join(s.dir(folder), remote.DocumentName(localPath)+docExt)
	tmpPath := finalPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}

	_, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", finalPath, copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return closeErr
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func (s *Storage) Remove(_ context.Context, folder, name string) error {
	p := filepath.Join(s.dir(folder), name+docExt)
	if err := os.Remove(p); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}
