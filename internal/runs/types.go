// Package runs archives mining runs as files next to their database rows.
package runs

import (
	"time"

	"go.uber.org/zap"

	"github.com/blackwell-systems/cartrules/internal/apriori"
	"github.com/blackwell-systems/cartrules/internal/rules"
	"github.com/blackwell-systems/cartrules/internal/store"
)

// Export formats.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// DefaultRetention is how long CleanupOldRuns keeps runs when no retention
// is configured.
const DefaultRetention = 90 * 24 * time.Hour

// Archive is the full record of one mining run as written to disk.
type Archive struct {
	ID            string              `json:"id" msgpack:"id"`
	Dataset       string              `json:"dataset" msgpack:"dataset"`
	CreatedAt     time.Time           `json:"created_at" msgpack:"created_at"`
	MinSupport    float64             `json:"min_support" msgpack:"min_support"`
	MinConfidence float64             `json:"min_confidence" msgpack:"min_confidence"`
	MinLift       float64             `json:"min_lift,omitempty" msgpack:"min_lift,omitempty"`
	MaxLen        int                 `json:"max_len,omitempty" msgpack:"max_len,omitempty"`
	Transactions  int                 `json:"transactions" msgpack:"transactions"`
	Levels        []apriori.LevelStat `json:"levels,omitempty" msgpack:"levels,omitempty"`
	Itemsets      []apriori.Itemset   `json:"itemsets" msgpack:"itemsets"`
	Rules         []rules.Rule        `json:"rules" msgpack:"rules"`
}

// Manager saves, lists, loads and prunes archived runs.
type Manager struct {
	store  *store.Store
	runDir string
	logger *zap.Logger
}

// New creates a new run Manager writing archive files under runDir.
func New(st *store.Store, runDir string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:  st,
		runDir: runDir,
		logger: logger,
	}
}
