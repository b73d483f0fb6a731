package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dev-tams/newsdrop/internal/source"
	"github.com/dev-tams/newsdrop/internal/storage"
)

// Executor applies a plan to the remote folder: uploads first, then
// deletions. The first failing call aborts the run without rollback.
type Executor struct {
	Store  storage.Store
	Folder string
	DryRun bool
	Out    io.Writer
}

type ApplyResult struct {
	Uploaded []string
	Deleted  []string
}

func (e *Executor) Apply(ctx context.Context, uploads []source.Edition, deletions []Item) (ApplyResult, error) {
	var res ApplyResult

	if e.DryRun {
		e.reportDryRun(uploads, deletions)
		return res, nil
	}

	for _, ed := range uploads {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := e.Store.Put(ctx, ed.Path, e.Folder); err != nil {
			return res, fmt.Errorf("upload %q: %w", ed.Name(), err)
		}
		res.Uploaded = append(res.Uploaded, ed.Name())
		fmt.Fprintf(e.Out, "upload: folder=%q name=%q pages=%d\n", e.Folder, ed.Name(), ed.Pages)
	}

	for _, it := range deletions {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := e.Store.Remove(ctx, e.Folder, it.Name()); err != nil {
			return res, fmt.Errorf("delete %q: %w", it.Name(), err)
		}
		res.Deleted = append(res.Deleted, it.Name())
		fmt.Fprintf(e.Out, "delete: folder=%q name=%q\n", e.Folder, it.Name())
	}

	fmt.Fprintf(e.Out, "sync: folder=%q store=%s uploaded=%d deleted=%d\n",
		e.Folder, e.Store.Name(), len(res.Uploaded), len(res.Deleted))
	return res, nil
}

func (e *Executor) reportDryRun(uploads []source.Edition, deletions []Item) {
	names := make([]string, len(uploads))
	for i, ed := range uploads {
		names[i] = ed.Name()
		fmt.Fprintf(e.Out, "dry-run: would upload folder=%q name=%q pages=%d\n", e.Folder, ed.Name(), ed.Pages)
	}

	dates := make([]string, 0)
	seen := map[string]bool{}
	for _, it := range deletions {
		if !seen[it.Date] {
			seen[it.Date] = true
			dates = append(dates, it.Date)
		}
		fmt.Fprintf(e.Out, "dry-run: would delete folder=%q name=%q\n", e.Folder, it.Name())
	}

	fmt.Fprintf(e.Out, "dry-run: uploads=%d [%s] deletions=%d dates=[%s]\n",
		len(uploads), strings.Join(names, ", "), len(deletions), strings.Join(dates, ", "))
}
