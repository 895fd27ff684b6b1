// Package dataset holds basket transactions and loads them from CSV, JSON
// and YAML files.
//
// A Dataset is a plain ordered collection. It normalises item labels when
// transactions are added (trimmed, blank labels dropped, duplicates
// collapsed, sorted) but does not enforce the non-empty and unique-ID
// invariants; those are checked once by the encoder before mining.
package dataset

import (
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Transaction is one basket: an identifier plus the item labels it contains.
type Transaction struct {
	ID    string   `json:"id" yaml:"id" msgpack:"id"`
	Items []string `json:"items" yaml:"items" msgpack:"items"`
}

// Dataset is a named, ordered sequence of transactions.
type Dataset struct {
	Name         string
	Transactions []Transaction
}

// Stats summarises a dataset for the stats command.
type Stats struct {
	Transactions  int
	DistinctItems int
	TotalItems    int
	AvgBasket     float64
	MaxBasket     int
}

// New creates an empty dataset.
func New(name string) *Dataset {
	return &Dataset{Name: name}
}

// Add appends a transaction after normalising its items.
func (d *Dataset) Add(id string, items ...string) {
	d.Transactions = append(d.Transactions, Transaction{
		ID:    strings.TrimSpace(id),
		Items: NormalizeItems(items),
	})
}

// Len returns the number of transactions.
func (d *Dataset) Len() int {
	return len(d.Transactions)
}

// Items returns the sorted union of all item labels.
func (d *Dataset) Items() []string {
	items := maps.Keys(d.ItemCounts())
	slices.Sort(items)
	return items
}

// ItemCounts returns how many transactions contain each item.
func (d *Dataset) ItemCounts() map[string]int {
	counts := make(map[string]int)
	for _, txn := range d.Transactions {
		for _, item := range NormalizeItems(txn.Items) {
			counts[item]++
		}
	}
	return counts
}

// Stats computes basket size statistics.
func (d *Dataset) Stats() Stats {
	st := Stats{Transactions: len(d.Transactions)}
	seen := make(map[string]struct{})
	for _, txn := range d.Transactions {
		items := NormalizeItems(txn.Items)
		st.TotalItems += len(items)
		if len(items) > st.MaxBasket {
			st.MaxBasket = len(items)
		}
		for _, item := range items {
			seen[item] = struct{}{}
		}
	}
	st.DistinctItems = len(seen)
	if st.Transactions > 0 {
		st.AvgBasket = float64(st.TotalItems) / float64(st.Transactions)
	}
	return st
}

// Canonicalize returns a copy of the dataset with every item label mapped
// through aliases. Labels without an alias are kept as-is.
func (d *Dataset) Canonicalize(aliases map[string]string) *Dataset {
	out := New(d.Name)
	for _, txn := range d.Transactions {
		items := make([]string, len(txn.Items))
		for i, item := range txn.Items {
			item = strings.TrimSpace(item)
			if canonical, ok := aliases[item]; ok {
				item = canonical
			}
			items[i] = item
		}
		out.Add(txn.ID, items...)
	}
	return out
}

// NormalizeItems trims labels, drops blanks and returns the sorted distinct set.
func NormalizeItems(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
