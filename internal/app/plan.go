package app

import (
	"sort"

	"github.com/dev-tams/newsdrop/internal/source"
)

// RunPlan is everything one invocation decided. It is never persisted.
type RunPlan struct {
	Candidates []source.Edition
	Inventory  Inventory
	// Present holds candidates whose date is already stored remotely.
	Present   []Item
	Uploads   []source.Edition
	Retention RetentionDecision
}

// Plan selects a candidate for upload iff its date is absent from
// inventory[prefix], and computes retention on the inventory as listed.
// Uploads are ordered by remote name.
func Plan(candidates []source.Edition, inv Inventory, maxDays int) RunPlan {
	p := RunPlan{
		Candidates: candidates,
		Inventory:  inv,
		Retention:  SelectDeletions(inv, maxDays),
	}
	for _, c := range candidates {
		if inv.Has(c.Prefix, c.Date) {
			p.Present = append(p.Present, Item{Prefix: c.Prefix, Date: c.Date})
			continue
		}
		p.Uploads = append(p.Uploads, c)
	}
	sort.Slice(p.Uploads, func(i, j int) bool { return p.Uploads[i].Name() < p.Uploads[j].Name() })
	return p
}
