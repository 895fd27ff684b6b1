package analyzer

import (
	"time"

	"github.com/blackwell-systems/cartrules/internal/apriori"
	"github.com/blackwell-systems/cartrules/internal/rules"
)

// Params are the thresholds and limits of one analysis.
type Params struct {
	MinSupport    float64
	MinConfidence float64
	MinLift       float64 // 0 disables the lift filter
	MaxLen        int     // 0 means no limit
	Workers       int     // 0 means one per CPU

	// OnLevel, if set, is called after each level of the itemset search.
	OnLevel func(apriori.LevelStat)
}

// Report is the outcome of Analyze.
type Report struct {
	Dataset      string
	Transactions int
	Result       *apriori.Result
	Rules        []rules.Rule
	Elapsed      time.Duration
}

// Recommendation is an item suggested for a basket, with the
// highest-ranked rule that suggests it.
type Recommendation struct {
	Item       string     `json:"item"`
	Confidence float64    `json:"confidence"`
	Lift       float64    `json:"lift"`
	Rule       rules.Rule `json:"rule"`
}
