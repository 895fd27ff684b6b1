// Package rules derives association rules from frequent itemsets.
//
// Every metric is computed from the supports the miner already counted; the
// presence matrix is never consulted again.
package rules

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/blackwell-systems/cartrules/internal/apriori"
)

// maxSplitItems bounds the itemset size whose 2^n-2 splits we enumerate.
const maxSplitItems = 30

// Rule is a directional association "Antecedent -> Consequent".
type Rule struct {
	Antecedent []string `json:"antecedent" msgpack:"antecedent"`
	Consequent []string `json:"consequent" msgpack:"consequent"`
	Support    float64  `json:"support" msgpack:"support"`
	Confidence float64  `json:"confidence" msgpack:"confidence"`
	Lift       float64  `json:"lift" msgpack:"lift"`
	Leverage   float64  `json:"leverage" msgpack:"leverage"`
	// Conviction is +Inf when confidence is 1.
	Conviction float64 `json:"conviction" msgpack:"conviction"`
}

func (r Rule) String() string {
	return fmt.Sprintf("{%s} -> {%s}", strings.Join(r.Antecedent, ", "), strings.Join(r.Consequent, ", "))
}

// MissingSupportError reports a subset whose support the miner did not
// retain. It signals an inconsistent itemset collection.
type MissingSupportError struct {
	Items []string
}

func (e *MissingSupportError) Error() string {
	return fmt.Sprintf("missing support for itemset {%s}", strings.Join(e.Items, ", "))
}

// Options configures rule generation.
type Options struct {
	MinConfidence float64

	// MinLift drops rules whose lift is below it. Zero disables the filter.
	MinLift float64

	Logger *zap.Logger
}

// Generate builds every rule from the frequent itemsets in res whose
// confidence reaches opts.MinConfidence. Rules are ordered by confidence
// descending, then lift descending, then antecedent size ascending.
func Generate(res *apriori.Result, opts Options) ([]Rule, error) {
	if err := apriori.ValidateThreshold("min_confidence", opts.MinConfidence); err != nil {
		return nil, err
	}
	if err := apriori.ValidateNonNegative("min_lift", opts.MinLift); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	rules := []Rule{}
	for _, itemset := range res.Itemsets {
		if itemset.Len() < 2 {
			continue
		}
		if itemset.Len() > maxSplitItems {
			return nil, fmt.Errorf("itemset %s has %d items, too many to split (max %d)", itemset, itemset.Len(), maxSplitItems)
		}
		split, err := splitItemset(res, itemset, opts)
		if err != nil {
			return nil, err
		}
		rules = append(rules, split...)
	}

	slices.SortFunc(rules, compareRules)
	log.Debug("rules generated", zap.Int("rules", len(rules)), zap.Int("itemsets", res.Len()))
	return rules, nil
}

// GenerateFromItemsets builds rules from a bare itemset collection, such as
// one reloaded from a saved run. Items need not be sorted.
func GenerateFromItemsets(itemsets []apriori.Itemset, minConfidence float64) ([]Rule, error) {
	if err := apriori.ValidateThreshold("min_confidence", minConfidence); err != nil {
		return nil, err
	}
	total := 0
	if len(itemsets) > 0 {
		total = itemsets[0].Total
	}
	for _, s := range itemsets {
		if s.Total != total {
			return nil, fmt.Errorf("itemsets come from different runs (%d and %d transactions)", total, s.Total)
		}
	}
	return Generate(apriori.NewResult(itemsets, total, 0), Options{MinConfidence: minConfidence})
}

// splitItemset emits one rule per proper non-empty subset of itemset used
// as antecedent.
func splitItemset(res *apriori.Result, itemset apriori.Itemset, opts Options) ([]Rule, error) {
	n := itemset.Len()
	var out []Rule
	for mask := uint64(1); mask < (uint64(1)<<n)-1; mask++ {
		antecedent := make([]string, 0, n)
		consequent := make([]string, 0, n)
		for i, item := range itemset.Items {
			if mask&(1<<i) != 0 {
				antecedent = append(antecedent, item)
			} else {
				consequent = append(consequent, item)
			}
		}

		rule, err := Score(res, itemset, antecedent, consequent)
		if err != nil {
			return nil, err
		}
		if rule.Confidence+apriori.Epsilon < opts.MinConfidence {
			continue
		}
		if opts.MinLift > 0 && rule.Lift+apriori.Epsilon < opts.MinLift {
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

// Score computes the metrics of antecedent -> consequent, whose union is
// itemset, from the supports memoised in res.
func Score(res *apriori.Result, itemset apriori.Itemset, antecedent, consequent []string) (Rule, error) {
	ant, ok := res.Lookup(antecedent)
	if !ok {
		return Rule{}, &MissingSupportError{Items: antecedent}
	}
	cons, ok := res.Lookup(consequent)
	if !ok {
		return Rule{}, &MissingSupportError{Items: consequent}
	}
	if ant.Count == 0 || cons.Count == 0 {
		return Rule{}, fmt.Errorf("zero support for a subset of %s", itemset)
	}

	total := float64(itemset.Total)
	both := float64(itemset.Count)
	antSupport := ant.Support()
	consSupport := cons.Support()

	confidence := both / float64(ant.Count)
	// Lift from integer counts is exactly symmetric in antecedent and consequent.
	lift := both * total / (float64(ant.Count) * float64(cons.Count))

	conviction := math.Inf(1)
	if confidence < 1 {
		conviction = (1 - consSupport) / (1 - confidence)
	}

	return Rule{
		Antecedent: slices.Clone(ant.Items),
		Consequent: slices.Clone(cons.Items),
		Support:    itemset.Support(),
		Confidence: confidence,
		Lift:       lift,
		Leverage:   itemset.Support() - antSupport*consSupport,
		Conviction: conviction,
	}, nil
}

func compareRules(a, b Rule) int {
	switch {
	case a.Confidence > b.Confidence:
		return -1
	case a.Confidence < b.Confidence:
		return 1
	case a.Lift > b.Lift:
		return -1
	case a.Lift < b.Lift:
		return 1
	case len(a.Antecedent) != len(b.Antecedent):
		return len(a.Antecedent) - len(b.Antecedent)
	}
	if c := slices.Compare(a.Antecedent, b.Antecedent); c != 0 {
		return c
	}
	return slices.Compare(a.Consequent, b.Consequent)
}
