package analyzer

import (
	mapset "github.com/deckarep/golang-set"

	"github.com/blackwell-systems/cartrules/internal/rules"
)

// Recommend suggests items to add to basket. A rule applies when its whole
// antecedent is in the basket; each consequent item not yet in the basket
// is suggested once, credited to the first applicable rule in rs. rs is
// expected in ranked order, as Generate returns it. A limit above zero
// caps the number of suggestions.
func (a *Analyzer) Recommend(rs []rules.Rule, basket []string, limit int) []Recommendation {
	have := mapset.NewThreadUnsafeSet()
	for _, item := range a.canonical(basket) {
		have.Add(item)
	}

	seen := mapset.NewThreadUnsafeSet()
	recs := []Recommendation{}

	for _, r := range rs {
		if !containsAll(have, r.Antecedent) {
			continue
		}
		for _, item := range r.Consequent {
			if have.Contains(item) || seen.Contains(item) {
				continue
			}
			seen.Add(item)
			recs = append(recs, Recommendation{
				Item:       item,
				Confidence: r.Confidence,
				Lift:       r.Lift,
				Rule:       r,
			})
			if limit > 0 && len(recs) == limit {
				return recs
			}
		}
	}

	return recs
}

func containsAll(set mapset.Set, items []string) bool {
	for _, item := range items {
		if !set.Contains(item) {
			return false
		}
	}
	return true
}
