package analyzer

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set"
	"golang.org/x/exp/slices"

	"github.com/blackwell-systems/cartrules/internal/apriori"
	"github.com/blackwell-systems/cartrules/internal/dataset"
	"github.com/blackwell-systems/cartrules/internal/encoder"
	"github.com/blackwell-systems/cartrules/internal/rules"
)

// Explain computes the metrics of antecedent -> consequent over ds
// directly, whatever thresholds a mining run would apply. Both sides must
// be non-empty and disjoint, and the antecedent and consequent must each
// occur in at least one transaction.
func (a *Analyzer) Explain(ds *dataset.Dataset, antecedent, consequent []string) (rules.Rule, error) {
	ant := a.canonical(antecedent)
	cons := a.canonical(consequent)
	if len(ant) == 0 || len(cons) == 0 {
		return rules.Rule{}, fmt.Errorf("antecedent and consequent must both name at least one item")
	}

	antSet := mapset.NewThreadUnsafeSet()
	for _, item := range ant {
		antSet.Add(item)
	}
	consSet := mapset.NewThreadUnsafeSet()
	for _, item := range cons {
		consSet.Add(item)
	}
	if overlap := antSet.Intersect(consSet); overlap.Cardinality() > 0 {
		return rules.Rule{}, fmt.Errorf("items appear on both sides of the rule: %v", overlap)
	}

	m, err := encoder.Encode(ds)
	if err != nil {
		return rules.Rule{}, err
	}

	union := append(slices.Clone(ant), cons...)
	slices.Sort(union)

	total := m.Len()
	itemsets := []apriori.Itemset{
		{Items: ant, Count: m.Count(ant), Total: total},
		{Items: cons, Count: m.Count(cons), Total: total},
		{Items: union, Count: m.Count(union), Total: total},
	}
	for _, is := range itemsets[:2] {
		if is.Count == 0 {
			return rules.Rule{}, fmt.Errorf("%s does not occur in dataset %s", is, ds.Name)
		}
	}

	res := apriori.NewResult(itemsets, total, 0)
	return rules.Score(res, itemsets[2], ant, cons)
}

// canonical applies aliases and normalises a list of labels.
func (a *Analyzer) canonical(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if c, ok := a.aliases[item]; ok {
			item = c
		}
		out = append(out, item)
	}
	return dataset.NormalizeItems(out)
}

// ParseItems splits a comma-separated item list.
func ParseItems(s string) []string {
	return dataset.NormalizeItems(strings.Split(s, ","))
}
