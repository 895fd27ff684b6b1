// Package encoder turns a transaction dataset into a presence matrix.
//
// The matrix is stored both ways round: each row (transaction) keeps a
// bitset of the item columns it contains, for O(1) membership queries, and
// each column (item) keeps a roaring bitmap of the rows containing it, so
// the support of an itemset is the cardinality of the intersection of its
// columns. A Matrix is read-only once built and safe to share between
// goroutines.
package encoder

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/RoaringBitmap/roaring"
	"github.com/bits-and-blooms/bitset"
	"golang.org/x/exp/slices"

	"github.com/blackwell-systems/cartrules/internal/dataset"
)

// EncodingError reports malformed or empty transaction input.
type EncodingError struct {
	TransactionID string // empty when the error concerns the whole dataset
	Reason        string
}

func (e *EncodingError) Error() string {
	if e.TransactionID == "" {
		return "encoding error: " + e.Reason
	}
	return fmt.Sprintf("encoding error: transaction %q: %s", e.TransactionID, e.Reason)
}

// Matrix is a transaction x item presence table.
type Matrix struct {
	items   []string
	columns map[string]uint
	ids     []string
	rowOf   map[string]int
	rows    []*bitset.BitSet
	tidsets []*roaring.Bitmap
}

// Encode builds the presence matrix for ds. It fails with *EncodingError if
// the dataset is empty, a transaction has no items, an item label is blank
// or contains a control character, or two transactions share an identifier.
func Encode(ds *dataset.Dataset) (*Matrix, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, &EncodingError{Reason: "transaction store is empty"}
	}

	m := &Matrix{
		columns: make(map[string]uint),
		ids:     make([]string, 0, ds.Len()),
		rowOf:   make(map[string]int, ds.Len()),
	}

	for row, txn := range ds.Transactions {
		if _, dup := m.rowOf[txn.ID]; dup {
			return nil, &EncodingError{TransactionID: txn.ID, Reason: "duplicate transaction id"}
		}
		if len(txn.Items) == 0 {
			return nil, &EncodingError{TransactionID: txn.ID, Reason: "transaction has no items"}
		}
		for _, item := range txn.Items {
			if strings.TrimSpace(item) == "" {
				return nil, &EncodingError{TransactionID: txn.ID, Reason: "blank item label"}
			}
			if strings.IndexFunc(item, unicode.IsControl) >= 0 {
				return nil, &EncodingError{TransactionID: txn.ID, Reason: fmt.Sprintf("item label %q contains a control character", item)}
			}
			m.columns[item] = 0
		}
		m.rowOf[txn.ID] = row
		m.ids = append(m.ids, txn.ID)
	}

	m.items = make([]string, 0, len(m.columns))
	for item := range m.columns {
		m.items = append(m.items, item)
	}
	slices.Sort(m.items)
	for col, item := range m.items {
		m.columns[item] = uint(col)
	}

	m.rows = make([]*bitset.BitSet, len(m.ids))
	m.tidsets = make([]*roaring.Bitmap, len(m.items))
	for col := range m.tidsets {
		m.tidsets[col] = roaring.New()
	}
	for row, txn := range ds.Transactions {
		bs := bitset.New(uint(len(m.items)))
		for _, item := range txn.Items {
			col := m.columns[item]
			bs.Set(col)
			m.tidsets[col].Add(uint32(row))
		}
		m.rows[row] = bs
	}
	for _, tids := range m.tidsets {
		tids.RunOptimize()
	}

	return m, nil
}

// Len returns the number of transactions (rows).
func (m *Matrix) Len() int {
	return len(m.ids)
}

// Items returns the sorted distinct item labels (columns). The slice must
// not be modified.
func (m *Matrix) Items() []string {
	return m.items
}

// TransactionID returns the identifier of a row.
func (m *Matrix) TransactionID(row int) string {
	return m.ids[row]
}

// Contains reports whether the transaction at row contains item.
func (m *Matrix) Contains(row int, item string) bool {
	col, ok := m.columns[item]
	if !ok || row < 0 || row >= len(m.rows) {
		return false
	}
	return m.rows[row].Test(col)
}

// ContainsID reports whether the transaction with the given ID contains item.
func (m *Matrix) ContainsID(id, item string) bool {
	row, ok := m.rowOf[id]
	if !ok {
		return false
	}
	return m.Contains(row, item)
}

// ItemsOf returns the sorted items of the transaction with the given ID.
func (m *Matrix) ItemsOf(id string) []string {
	row, ok := m.rowOf[id]
	if !ok {
		return nil
	}
	var items []string
	for col, ok := m.rows[row].NextSet(0); ok; col, ok = m.rows[row].NextSet(col + 1) {
		items = append(items, m.items[col])
	}
	return items
}

// Rows returns the tidset of item: the rows whose transaction contains it.
// The bitmap is shared and must not be modified.
func (m *Matrix) Rows(item string) *roaring.Bitmap {
	col, ok := m.columns[item]
	if !ok {
		return nil
	}
	return m.tidsets[col]
}

// Count returns how many transactions contain every one of items. The empty
// itemset is contained in every transaction.
func (m *Matrix) Count(items []string) int {
	switch len(items) {
	case 0:
		return m.Len()
	case 1:
		tids := m.Rows(items[0])
		if tids == nil {
			return 0
		}
		return int(tids.GetCardinality())
	}

	bitmaps := make([]*roaring.Bitmap, len(items))
	for i, item := range items {
		tids := m.Rows(item)
		if tids == nil {
			return 0
		}
		bitmaps[i] = tids
	}
	if len(bitmaps) == 2 {
		return int(bitmaps[0].AndCardinality(bitmaps[1]))
	}
	return int(roaring.FastAnd(bitmaps...).GetCardinality())
}

// CountScan counts transactions containing every one of items by testing
// each row's bitset. It agrees with Count and exists to cross-check it.
func (m *Matrix) CountScan(items []string) int {
	cols := bitset.New(uint(len(m.items)))
	for _, item := range items {
		col, ok := m.columns[item]
		if !ok {
			return 0
		}
		cols.Set(col)
	}
	n := 0
	for _, row := range m.rows {
		if row.IsSuperSet(cols) {
			n++
		}
	}
	return n
}
