package app

import (
	"sort"

	"github.com/dev-tams/newsdrop/internal/source"
)

// Item identifies one edition in the remote folder.
type Item struct {
	Prefix string `json:"prefix" yaml:"prefix"`
	Date   string `json:"date" yaml:"date"`
}

func (i Item) Name() string { return source.EditionName(i.Prefix, i.Date) }

type RetentionDecision struct {
	// DatesToDelete is ordered oldest first.
	DatesToDelete []string
	Items         []Item
}

// SelectDeletions applies the retention window to inv.
//
// The trigger is the date count of the most populous prefix, while the dates
// removed are the oldest across all prefixes. A prefix holding fewer than
// maxDays dates can therefore still lose dates. maxDays < 0 disables
// retention.
func SelectDeletions(inv Inventory, maxDays int) RetentionDecision {
	if maxDays < 0 || len(inv) == 0 {
		return RetentionDecision{}
	}

	dateToPrefixes := make(map[string][]string)
	maxCount := 0
	for _, p := range inv.Prefixes() {
		dates := inv[p]
		if len(dates) > maxCount {
			maxCount = len(dates)
		}
		for d := range dates {
			dateToPrefixes[d] = append(dateToPrefixes[d], p)
		}
	}
	if maxCount <= maxDays {
		return RetentionDecision{}
	}

	all := make([]string, 0, len(dateToPrefixes))
	for d := range dateToPrefixes {
		all = append(all, d)
	}
	sort.Strings(all)

	n := len(all) - maxDays
	if n <= 0 {
		return RetentionDecision{}
	}

	dec := RetentionDecision{DatesToDelete: all[:n]}
	for _, d := range dec.DatesToDelete {
		for _, p := range dateToPrefixes[d] {
			dec.Items = append(dec.Items, Item{Prefix: p, Date: d})
		}
	}
	return dec
}
