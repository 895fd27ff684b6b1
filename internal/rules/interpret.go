package rules

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/exp/slices"
)

// Association classifies how the antecedent affects the consequent.
type Association string

const (
	// Positive: lift > 1, buying the antecedent makes the consequent more likely.
	Positive Association = "positive"
	// Independent: lift == 1, the two occur together as often as chance predicts.
	Independent Association = "independent"
	// Negative: lift < 1, buying the antecedent makes the consequent less likely.
	Negative Association = "negative"
)

// liftTolerance is how close to 1 a lift must be to count as independence.
const liftTolerance = 1e-9

// Classify maps a lift value to its association.
func Classify(lift float64) Association {
	switch {
	case math.Abs(lift-1) <= liftTolerance:
		return Independent
	case lift > 1:
		return Positive
	default:
		return Negative
	}
}

// Interpretation is the plain-language reading of a rule.
type Interpretation struct {
	Association Association `json:"association"`
	Support     string      `json:"support"`
	Confidence  string      `json:"confidence"`
	Lift        string      `json:"lift"`
}

// Interpret describes what a rule's metrics mean for a shopper.
func Interpret(r Rule) Interpretation {
	ant := strings.Join(r.Antecedent, ", ")
	cons := strings.Join(r.Consequent, ", ")

	in := Interpretation{
		Association: Classify(r.Lift),
		Support: fmt.Sprintf("%.1f%% of transactions contain both %s and %s",
			r.Support*100, ant, cons),
		Confidence: fmt.Sprintf("%.1f%% of customers who buy %s also buy %s",
			r.Confidence*100, ant, cons),
	}

	switch in.Association {
	case Positive:
		in.Lift = fmt.Sprintf("buying %s raises the chance of buying %s: %.2fx the baseline rate",
			ant, cons, r.Lift)
	case Independent:
		in.Lift = fmt.Sprintf("buying %s and buying %s are independent", ant, cons)
	default:
		in.Lift = fmt.Sprintf("buying %s lowers the chance of buying %s: %.2fx the baseline rate",
			ant, cons, r.Lift)
	}
	return in
}

// Involving returns the rules that mention item on either side.
func Involving(rules []Rule, item string) []Rule {
	var out []Rule
	for _, r := range rules {
		if slices.Contains(r.Antecedent, item) || slices.Contains(r.Consequent, item) {
			out = append(out, r)
		}
	}
	return out
}
