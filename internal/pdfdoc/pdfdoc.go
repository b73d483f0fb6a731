// Package pdfdoc assembles page documents into a single edition PDF.
//
// Pages keep the order in which they were appended; nothing is reordered or
// deduplicated. Each Assembly owns a private scratch directory that Close
// removes, so concurrent or repeated fetches never share file names.
package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/dev-tams/newsdrop/internal/errutil"
)

var (
	// ErrNoPages is returned by Finalize when nothing was appended.
	ErrNoPages = errors.New("assembly has no pages")

	// ErrInvalidDocument is returned when fetched bytes are not a usable PDF.
	ErrInvalidDocument = errors.New("invalid pdf document")
)

var disableConfigDir sync.Once

// PageCount parses b as a PDF and returns its number of pages.
// Documents without pages are rejected.
func PageCount(b []byte) (n int, err error) {
	defer func() {
		// the reader panics on some truncated inputs
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("%w: %v", ErrInvalidDocument, r)
		}
	}()

	r, err := pdflib.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	n = r.NumPage()
	if n < 1 {
		return 0, fmt.Errorf("%w: no pages", ErrInvalidDocument)
	}
	return n, nil
}

type Assembly struct {
	dir   string
	docs  []string
	pages int
}

// NewAssembly creates an assembly with its own scratch directory under
// parent (os.TempDir when empty).
func NewAssembly(parent string) (*Assembly, error) {
	dir, err := os.MkdirTemp(parent, "assembly-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Assembly{dir: dir}, nil
}

// Append validates doc and queues all of its pages after the ones already
// appended.
func (a *Assembly) Append(doc []byte) error {
	n, err := PageCount(doc)
	if err != nil {
		return err
	}

	p := filepath.Join(a.dir, fmt.Sprintf("%04d.pdf", len(a.docs)))
	if err := os.WriteFile(p, doc, 0o600); err != nil {
		return fmt.Errorf("write scratch page: %w", err)
	}
	a.docs = append(a.docs, p)
	a.pages += n
	return nil
}

// Pages is the total page count appended so far.
func (a *Assembly) Pages() int { return a.pages }

// Documents is the number of appended page documents.
func (a *Assembly) Documents() int { return len(a.docs) }

// Finalize writes the assembled document to outPath. The file appears
// atomically; on failure nothing is left at outPath.
func (a *Assembly) Finalize(outPath string) error {
	if len(a.docs) == 0 {
		return ErrNoPages
	}

	tmpPath := outPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	writeErr := a.writeTo(out)
	closeErr := out.Close()
	if writeErr != nil {
		_ = os.Remove(tmpPath)
		return writeErr
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close output: %w", closeErr)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

func (a *Assembly) writeTo(w io.Writer) error {
	if len(a.docs) == 1 {
		f, err := os.Open(a.docs[0])
		if err != nil {
			return fmt.Errorf("open page: %w", err)
		}
		defer errutil.Close(f, "Failed to close page document", "path", a.docs[0])
		if _, err := io.Copy(w, f); err != nil {
			return fmt.Errorf("copy page: %w", err)
		}
		return nil
	}

	rsc := make([]io.ReadSeeker, 0, len(a.docs))
	for _, p := range a.docs {
		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("open page: %w", err)
		}
		defer errutil.Close(f, "Failed to close page document", "path", p)
		rsc = append(rsc, f)
	}

	if err := api.MergeRaw(rsc, w, false, mergeConfig()); err != nil {
		return fmt.Errorf("merge pages: %w", err)
	}
	return nil
}

func mergeConfig() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	// classic xref tables keep the output readable by PageCount
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}

// Close removes the scratch directory.
func (a *Assembly) Close() error {
	return os.RemoveAll(a.dir)
}
