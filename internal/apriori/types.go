package apriori

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// Epsilon is the tolerance applied when comparing a computed ratio against
// a threshold, so a value sitting exactly on the boundary is not excluded
// by rounding.
const Epsilon = 1e-9

// InvalidParameterError reports a threshold outside (0, 1], or a count or
// lower bound that is negative.
type InvalidParameterError struct {
	Name  string
	Value float64

	// Want describes the accepted range. Empty means (0, 1].
	Want string
}

func (e *InvalidParameterError) Error() string {
	want := e.Want
	if want == "" {
		want = "must be in (0, 1]"
	}
	return fmt.Sprintf("invalid %s %v: %s", e.Name, e.Value, want)
}

// ValidateThreshold checks that v lies in (0, 1].
func ValidateThreshold(name string, v float64) error {
	if !(v > 0 && v <= 1) {
		return &InvalidParameterError{Name: name, Value: v}
	}
	return nil
}

// ValidateNonNegative checks that v is not below zero.
func ValidateNonNegative(name string, v float64) error {
	if v < 0 {
		return &InvalidParameterError{Name: name, Value: v, Want: "must not be negative"}
	}
	return nil
}

// Itemset is a set of item labels and the number of transactions that
// contain all of them. Items are sorted and distinct.
type Itemset struct {
	Items []string `json:"items" msgpack:"items"`
	Count int      `json:"count" msgpack:"count"`
	Total int      `json:"total" msgpack:"total"`
}

// Support is the fraction of transactions containing the itemset.
func (s Itemset) Support() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Count) / float64(s.Total)
}

// Len returns the number of items.
func (s Itemset) Len() int {
	return len(s.Items)
}

// Key returns the canonical lookup key of the itemset.
func (s Itemset) Key() string {
	return Key(s.Items)
}

func (s Itemset) String() string {
	return "{" + strings.Join(s.Items, ", ") + "}"
}

// Key returns the canonical key for a sorted item slice. Each label is
// length-prefixed, so distinct item lists never share a key whatever bytes
// the labels contain.
func Key(items []string) string {
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(strconv.Itoa(len(item)))
		sb.WriteByte(':')
		sb.WriteString(item)
	}
	return sb.String()
}

// LevelStat describes one level of the search.
type LevelStat struct {
	Size       int `json:"size" msgpack:"size"`             // itemset size k
	Candidates int `json:"candidates" msgpack:"candidates"` // candidates after the join step
	Pruned     int `json:"pruned" msgpack:"pruned"`         // candidates dropped by the subset check
	Frequent   int `json:"frequent" msgpack:"frequent"`     // candidates meeting min support
}

// Options configures a mining run.
type Options struct {
	MinSupport float64

	// Workers bounds the goroutines counting support. Zero means one per CPU.
	Workers int

	// MaxLen stops the search after itemsets of this size. Zero means no limit.
	MaxLen int

	// OnLevel, if set, is called after each level completes.
	OnLevel func(LevelStat)

	Logger *zap.Logger
}

// Result is the outcome of a mining run.
type Result struct {
	Itemsets     []Itemset
	Transactions int
	MinSupport   float64
	Levels       []LevelStat

	index map[string]int
}

// NewResult wraps already-mined itemsets, sorting them into result order
// and building the support index. Items within each itemset are sorted and
// de-duplicated on the way in.
func NewResult(itemsets []Itemset, transactions int, minSupport float64) *Result {
	sorted := make([]Itemset, len(itemsets))
	for i, s := range itemsets {
		items := slices.Clone(s.Items)
		slices.Sort(items)
		s.Items = slices.Compact(items)
		sorted[i] = s
	}
	slices.SortFunc(sorted, compareItemsets)
	r := &Result{
		Itemsets:     sorted,
		Transactions: transactions,
		MinSupport:   minSupport,
		index:        make(map[string]int, len(sorted)),
	}
	for i, s := range sorted {
		r.index[s.Key()] = i
	}
	return r
}

// Lookup returns the frequent itemset with exactly the given items, in any
// order.
func (r *Result) Lookup(items []string) (Itemset, bool) {
	sorted := slices.Clone(items)
	slices.Sort(sorted)
	i, ok := r.index[Key(sorted)]
	if !ok {
		return Itemset{}, false
	}
	return r.Itemsets[i], true
}

// Len returns the number of frequent itemsets.
func (r *Result) Len() int {
	return len(r.Itemsets)
}

// compareItemsets orders by support descending, then size ascending, then
// the sorted labels lexicographically. Support is compared on counts, which
// share a denominator within a run, so ties are exact.
func compareItemsets(a, b Itemset) int {
	if a.Count != b.Count {
		if a.Count > b.Count {
			return -1
		}
		return 1
	}
	if a.Len() != b.Len() {
		return a.Len() - b.Len()
	}
	return slices.Compare(a.Items, b.Items)
}
