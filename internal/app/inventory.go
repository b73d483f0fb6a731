package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dev-tams/newsdrop/internal/storage"
)

// Inventory maps a source prefix to the dates already present in the remote
// folder. It is rebuilt from the listing on every run.
type Inventory map[string]map[string]struct{}

// BuildInventory decomposes file entries named "<prefix> <date>" by prefix.
// A name matching several prefixes is recorded under each of them.
func BuildInventory(entries []storage.Entry, prefixes []string) Inventory {
	inv := make(Inventory)
	for _, e := range entries {
		if !e.IsFile {
			continue
		}
		for _, p := range prefixes {
			date, ok := strings.CutPrefix(e.Name, p+" ")
			if !ok || date == "" {
				continue
			}
			inv.add(p, date)
		}
	}
	return inv
}

func (inv Inventory) Has(prefix, date string) bool {
	_, ok := inv[prefix][date]
	return ok
}

func (inv Inventory) add(prefix, date string) {
	if inv[prefix] == nil {
		inv[prefix] = make(map[string]struct{})
	}
	inv[prefix][date] = struct{}{}
}

// Dates returns the stored dates of prefix, oldest first.
func (inv Inventory) Dates(prefix string) []string {
	out := make([]string, 0, len(inv[prefix]))
	for d := range inv[prefix] {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (inv Inventory) Prefixes() []string {
	out := make([]string, 0, len(inv))
	for p := range inv {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ReadInventory lists folder once and builds the inventory. A missing folder
// is created, or in dry-run only reported and treated as empty. Any other
// listing error is fatal to the run.
func ReadInventory(ctx context.Context, st storage.Store, folder string, prefixes []string, dryRun bool, out io.Writer) (Inventory, error) {
	entries, err := st.List(ctx, folder)
	if errors.Is(err, storage.ErrFolderNotFound) {
		if dryRun {
			fmt.Fprintf(out, "dry-run: would create folder=%q store=%s\n", folder, st.Name())
			return make(Inventory), nil
		}
		if err := st.Mkdir(ctx, folder); err != nil {
			return nil, fmt.Errorf("create folder %q: %w", folder, err)
		}
		fmt.Fprintf(out, "folder: created folder=%q store=%s\n", folder, st.Name())
		return make(Inventory), nil
	}
	if err != nil {
		return nil, fmt.Errorf("list folder %q: %w", folder, err)
	}
	return BuildInventory(entries, prefixes), nil
}
