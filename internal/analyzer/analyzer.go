// Package analyzer runs the encode, mine and rule steps over a dataset and
// answers questions about the result.
package analyzer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/blackwell-systems/cartrules/internal/apriori"
	"github.com/blackwell-systems/cartrules/internal/dataset"
	"github.com/blackwell-systems/cartrules/internal/encoder"
	"github.com/blackwell-systems/cartrules/internal/rules"
	"github.com/blackwell-systems/cartrules/internal/store"
)

// Analyzer resolves datasets and runs analyses over them.
type Analyzer struct {
	store   *store.Store
	aliases map[string]string
	logger  *zap.Logger
}

// New creates a new Analyzer. The store may be nil when only files are
// analysed.
func New(st *store.Store, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{store: st, logger: logger}
}

// SetAliases sets the label aliases applied to datasets read from files or
// passed through Canonicalize.
func (a *Analyzer) SetAliases(aliases map[string]string) {
	a.aliases = aliases
}

// Canonicalize maps the item labels of ds through the analyzer's aliases.
// Without aliases ds is returned unchanged.
func (a *Analyzer) Canonicalize(ds *dataset.Dataset) *dataset.Dataset {
	if len(a.aliases) == 0 {
		return ds
	}
	return ds.Canonicalize(a.aliases)
}

// Dataset returns the transactions to analyse. With path set it reads that
// file, naming the dataset name if given; otherwise it reads the stored
// dataset called name.
func (a *Analyzer) Dataset(name, path, format string) (*dataset.Dataset, error) {
	switch {
	case path != "":
		ds, err := dataset.Load(path, format, name)
		if err != nil {
			return nil, err
		}
		return a.Canonicalize(ds), nil
	case name != "":
		if a.store == nil {
			return nil, fmt.Errorf("no database open to read dataset %s", name)
		}
		return a.store.GetDataset(name)
	default:
		return nil, fmt.Errorf("no dataset given: use --dataset or --file")
	}
}

// Analyze encodes ds, mines its frequent itemsets and derives rules.
func (a *Analyzer) Analyze(ctx context.Context, ds *dataset.Dataset, p Params) (*Report, error) {
	// Validate both thresholds before spending time on the search.
	if err := apriori.ValidateThreshold("min_support", p.MinSupport); err != nil {
		return nil, err
	}
	if err := apriori.ValidateThreshold("min_confidence", p.MinConfidence); err != nil {
		return nil, err
	}
	if err := apriori.ValidateNonNegative("min_lift", p.MinLift); err != nil {
		return nil, err
	}
	if err := apriori.ValidateNonNegative("max_len", float64(p.MaxLen)); err != nil {
		return nil, err
	}
	if err := apriori.ValidateNonNegative("workers", float64(p.Workers)); err != nil {
		return nil, err
	}

	start := time.Now()

	m, err := encoder.Encode(ds)
	if err != nil {
		return nil, err
	}

	res, err := apriori.Mine(ctx, m, apriori.Options{
		MinSupport: p.MinSupport,
		Workers:    p.Workers,
		MaxLen:     p.MaxLen,
		OnLevel:    p.OnLevel,
		Logger:     a.logger,
	})
	if err != nil {
		return nil, err
	}

	rs, err := rules.Generate(res, rules.Options{
		MinConfidence: p.MinConfidence,
		MinLift:       p.MinLift,
		Logger:        a.logger,
	})
	if err != nil {
		return nil, err
	}

	report := &Report{
		Dataset:      ds.Name,
		Transactions: m.Len(),
		Result:       res,
		Rules:        rs,
		Elapsed:      time.Since(start),
	}

	a.logger.Info("analysis complete",
		zap.String("dataset", ds.Name),
		zap.Int("transactions", report.Transactions),
		zap.Int("itemsets", res.Len()),
		zap.Int("rules", len(rs)),
		zap.Duration("elapsed", report.Elapsed))

	return report, nil
}
