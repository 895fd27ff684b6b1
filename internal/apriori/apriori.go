// Package apriori finds frequent itemsets with the level-wise Apriori search.
//
// Level k candidates are built in two explicit phases: a join of frequent
// (k-1)-itemsets sharing their first k-2 items, then a prune that drops any
// candidate with an infrequent (k-1)-subset. Only survivors are counted.
// Counting is split across a bounded pool of goroutines reading the shared
// presence matrix; each count lands in a slot addressed by candidate index,
// so output order never depends on scheduling.
package apriori

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	mapset "github.com/deckarep/golang-set"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/blackwell-systems/cartrules/internal/dataset"
	"github.com/blackwell-systems/cartrules/internal/encoder"
)

// Miner runs the level-wise search over one presence matrix.
type Miner struct {
	matrix  *encoder.Matrix
	opts    Options
	workers int
	log     *zap.Logger
}

// New creates a Miner. It fails with *InvalidParameterError if
// opts.MinSupport is outside (0, 1] or MaxLen or Workers is negative.
func New(m *encoder.Matrix, opts Options) (*Miner, error) {
	if err := ValidateThreshold("min_support", opts.MinSupport); err != nil {
		return nil, err
	}
	if err := ValidateNonNegative("max_len", float64(opts.MaxLen)); err != nil {
		return nil, err
	}
	if err := ValidateNonNegative("workers", float64(opts.Workers)); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("matrix cannot be nil")
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Miner{matrix: m, opts: opts, workers: workers, log: log}, nil
}

// Mine is shorthand for New followed by Run.
func Mine(ctx context.Context, m *encoder.Matrix, opts Options) (*Result, error) {
	miner, err := New(m, opts)
	if err != nil {
		return nil, err
	}
	return miner.Run(ctx)
}

// MineTransactions encodes ds and mines it with default options.
func MineTransactions(ctx context.Context, ds *dataset.Dataset, minSupport float64) (*Result, error) {
	if err := ValidateThreshold("min_support", minSupport); err != nil {
		return nil, err
	}
	m, err := encoder.Encode(ds)
	if err != nil {
		return nil, err
	}
	return Mine(ctx, m, Options{MinSupport: minSupport})
}

// Run executes the search and returns every frequent itemset. A cancelled
// context aborts the run with ctx.Err(); no partial result is returned.
func (mn *Miner) Run(ctx context.Context) (*Result, error) {
	total := mn.matrix.Len()
	items := mn.matrix.Items()

	var all []Itemset
	var levels []LevelStat

	// Level 1: every distinct item is a candidate.
	candidates := make([][]string, len(items))
	for i, item := range items {
		candidates[i] = []string{item}
	}
	stat := LevelStat{Size: 1, Candidates: len(candidates)}

	for k := 1; ; k++ {
		frequent, err := mn.countLevel(ctx, candidates, total)
		if err != nil {
			return nil, err
		}
		stat.Frequent = len(frequent)
		levels = append(levels, stat)
		mn.log.Debug("apriori level done",
			zap.Int("k", k),
			zap.Int("candidates", stat.Candidates),
			zap.Int("pruned", stat.Pruned),
			zap.Int("frequent", stat.Frequent))
		if mn.opts.OnLevel != nil {
			mn.opts.OnLevel(stat)
		}

		all = append(all, frequent...)

		if len(frequent) == 0 || k+1 > len(items) {
			break
		}
		if mn.opts.MaxLen > 0 && k+1 > mn.opts.MaxLen {
			break
		}

		joined := joinCandidates(frequent)
		candidates = pruneCandidates(joined, frequent)
		stat = LevelStat{
			Size:       k + 1,
			Candidates: len(joined),
			Pruned:     len(joined) - len(candidates),
		}
		if len(candidates) == 0 {
			levels = append(levels, stat)
			if mn.opts.OnLevel != nil {
				mn.opts.OnLevel(stat)
			}
			break
		}
	}

	res := NewResult(all, total, mn.opts.MinSupport)
	res.Levels = levels
	mn.log.Info("apriori finished",
		zap.Int("transactions", total),
		zap.Int("items", len(items)),
		zap.Int("frequent", res.Len()))
	return res, nil
}

// countLevel counts support for each candidate and returns the frequent
// ones in lexicographic order, which joinCandidates relies on.
func (mn *Miner) countLevel(ctx context.Context, candidates [][]string, total int) ([]Itemset, error) {
	counts := make([]int, len(candidates))

	workers := mn.workers
	if workers > len(candidates) {
		workers = len(candidates)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(start int) {
			defer wg.Done()
			for i := start; i < len(candidates); i += workers {
				if ctx.Err() != nil {
					return
				}
				counts[i] = mn.matrix.Count(candidates[i])
			}
		}(w)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var frequent []Itemset
	for i, items := range candidates {
		if meetsSupport(counts[i], total, mn.opts.MinSupport) {
			frequent = append(frequent, Itemset{Items: items, Count: counts[i], Total: total})
		}
	}
	slices.SortFunc(frequent, func(a, b Itemset) int {
		return slices.Compare(a.Items, b.Items)
	})
	return frequent, nil
}

// meetsSupport reports whether count/total reaches minSupport, inclusive.
func meetsSupport(count, total int, minSupport float64) bool {
	if total == 0 {
		return false
	}
	return float64(count)/float64(total)+Epsilon >= minSupport
}

// joinCandidates combines pairs of frequent (k-1)-itemsets that share their
// first k-2 items. prev must be sorted lexicographically; the result then is
// too.
func joinCandidates(prev []Itemset) [][]string {
	var out [][]string
	for i := 0; i < len(prev); i++ {
		a := prev[i].Items
		prefix := a[:len(a)-1]
		for j := i + 1; j < len(prev); j++ {
			b := prev[j].Items
			if !slices.Equal(prefix, b[:len(b)-1]) {
				break
			}
			candidate := make([]string, 0, len(a)+1)
			candidate = append(candidate, a...)
			candidate = append(candidate, b[len(b)-1])
			out = append(out, candidate)
		}
	}
	return out
}

// pruneCandidates drops every candidate that has a (k-1)-subset missing from
// prev.
func pruneCandidates(candidates [][]string, prev []Itemset) [][]string {
	frequent := mapset.NewThreadUnsafeSet()
	for _, s := range prev {
		frequent.Add(s.Key())
	}

	out := candidates[:0]
	for _, candidate := range candidates {
		if allSubsetsFrequent(candidate, frequent) {
			out = append(out, candidate)
		}
	}
	return out
}

func allSubsetsFrequent(candidate []string, frequent mapset.Set) bool {
	subset := make([]string, 0, len(candidate)-1)
	for skip := range candidate {
		subset = subset[:0]
		subset = append(subset, candidate[:skip]...)
		subset = append(subset, candidate[skip+1:]...)
		if !frequent.Contains(Key(subset)) {
			return false
		}
	}
	return true
}
