package app

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"
)

const (
	FormatText = "text"
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Report is the printable form of a RunPlan and its outcome.
type Report struct {
	Folder        string              `json:"folder" yaml:"folder"`
	Store         string              `json:"store" yaml:"store"`
	Date          string              `json:"date" yaml:"date"`
	DryRun        bool                `json:"dry_run" yaml:"dry_run"`
	Inventory     map[string][]string `json:"inventory" yaml:"inventory"`
	Candidates    []string            `json:"candidates" yaml:"candidates"`
	Present       []string            `json:"present" yaml:"present"`
	FailedSources []string            `json:"failed_sources" yaml:"failed_sources"`
	Uploads       []string            `json:"uploads" yaml:"uploads"`
	DatesToDelete []string            `json:"dates_to_delete" yaml:"dates_to_delete"`
	Deletions     []string            `json:"deletions" yaml:"deletions"`
}

func NewReport(res SyncResult) Report {
	r := Report{
		Folder:        res.Folder,
		Store:         res.Store,
		Date:          res.Date,
		DryRun:        res.DryRun,
		Inventory:     make(map[string][]string),
		Candidates:    []string{},
		Present:       []string{},
		FailedSources: append([]string{}, res.FailedSources...),
		Uploads:       []string{},
		DatesToDelete: append([]string{}, res.Plan.Retention.DatesToDelete...),
		Deletions:     []string{},
	}
	for _, p := range res.Plan.Inventory.Prefixes() {
		r.Inventory[p] = res.Plan.Inventory.Dates(p)
	}
	for _, c := range res.Plan.Candidates {
		r.Candidates = append(r.Candidates, c.Name())
	}
	for _, it := range res.Skipped {
		r.Present = append(r.Present, it.Name())
	}
	for _, it := range res.Plan.Present {
		r.Present = append(r.Present, it.Name())
	}
	for _, u := range res.Plan.Uploads {
		r.Uploads = append(r.Uploads, u.Name())
	}
	for _, it := range res.Plan.Retention.Items {
		r.Deletions = append(r.Deletions, it.Name())
	}
	return r
}

func WriteReport(w io.Writer, format string, r Report) error {
	switch strings.ToLower(format) {
	case "", FormatText:
		return writeText(w, r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode json report: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown report format %q (want %s, %s or %s)", format, FormatText, FormatYAML, FormatJSON)
	}
}

func writeText(w io.Writer, r Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "plan: folder=%q store=%s date=%s dry_run=%t\n", r.Folder, r.Store, r.Date, r.DryRun)
	prefixes := make([]string, 0, len(r.Inventory))
	for p := range r.Inventory {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	for _, p := range prefixes {
		dates := r.Inventory[p]
		fmt.Fprintf(&b, "  inventory: prefix=%q dates=%d [%s]\n", p, len(dates), strings.Join(dates, ", "))
	}
	writeList(&b, "present", r.Present)
	writeList(&b, "failed", r.FailedSources)
	writeList(&b, "upload", r.Uploads)
	writeList(&b, "delete", r.Deletions)
	fmt.Fprintf(&b, "  totals: uploads=%d deletions=%d dates_to_delete=[%s]\n",
		len(r.Uploads), len(r.Deletions), strings.Join(r.DatesToDelete, ", "))
	_, err := io.WriteString(w, b.String())
	return err
}

func writeList(b *strings.Builder, label string, items []string) {
	for _, it := range items {
		fmt.Fprintf(b, "  %s: %q\n", label, it)
	}
}
