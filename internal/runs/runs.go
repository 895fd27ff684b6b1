package runs

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/blackwell-systems/cartrules/internal/apriori"
	"github.com/blackwell-systems/cartrules/internal/rules"
	"github.com/blackwell-systems/cartrules/internal/store"
)

// NewArchive captures a mining result and its rules for saving.
func NewArchive(datasetName string, res *apriori.Result, rs []rules.Rule, minConfidence, minLift float64, maxLen int) *Archive {
	return &Archive{
		Dataset:       datasetName,
		MinSupport:    res.MinSupport,
		MinConfidence: minConfidence,
		MinLift:       minLift,
		MaxLen:        maxLen,
		Transactions:  res.Transactions,
		Levels:        res.Levels,
		Itemsets:      res.Itemsets,
		Rules:         rs,
	}
}

// Save writes the archive to a JSON file and records it in the database.
// An empty ID or zero CreatedAt is filled in. Returns the stored run.
func (m *Manager) Save(a *Archive) (*store.Run, error) {
	if err := os.MkdirAll(m.runDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.CreatedAt = a.CreatedAt.UTC().Truncate(time.Second)

	// YYYY-MM-DD-HHMMSS-<id prefix>.json
	filename := fmt.Sprintf("%s-%s.json", a.CreatedAt.Format("2006-01-02-150405"), shortID(a.ID))
	path := filepath.Join(m.runDir, filename)

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write run file: %w", err)
	}

	run := &store.Run{
		ID:            a.ID,
		Dataset:       a.Dataset,
		CreatedAt:     a.CreatedAt,
		MinSupport:    a.MinSupport,
		MinConfidence: a.MinConfidence,
		MinLift:       a.MinLift,
		MaxLen:        a.MaxLen,
		Transactions:  a.Transactions,
		RunPath:       path,
	}

	if err := m.store.SaveRun(run, a.Itemsets, a.Rules); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to insert run into database: %w", err)
	}

	m.logger.Info("run saved",
		zap.String("id", a.ID),
		zap.String("path", path),
		zap.Int("itemsets", run.Itemsets),
		zap.Int("rules", run.Rules))

	return run, nil
}

// List returns all saved runs, newest first.
func (m *Manager) List() ([]*store.Run, error) {
	list, err := m.store.ListRuns()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return list, nil
}

// Load returns the archive for a run ID or unique ID prefix. The archive
// file is preferred; when it is gone the run is rebuilt from the database.
func (m *Manager) Load(id string) (*Archive, error) {
	fullID, err := m.store.ResolveRunID(id)
	if err != nil {
		return nil, err
	}

	run, err := m.store.GetRun(fullID)
	if err != nil {
		return nil, err
	}

	if run.RunPath != "" {
		f, err := os.Open(run.RunPath)
		if err == nil {
			defer f.Close()
			a, err := Decode(f, FormatJSON)
			if err != nil {
				return nil, fmt.Errorf("failed to read run file %s: %w", run.RunPath, err)
			}
			return a, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to open run file %s: %w", run.RunPath, err)
		}
		m.logger.Debug("run file missing, rebuilding from database", zap.String("path", run.RunPath))
	}

	return m.fromStore(run)
}

func (m *Manager) fromStore(run *store.Run) (*Archive, error) {
	itemsets, err := m.store.GetRunItemsets(run.ID)
	if err != nil {
		return nil, err
	}
	rs, err := m.store.GetRunRules(run.ID)
	if err != nil {
		return nil, err
	}

	return &Archive{
		ID:            run.ID,
		Dataset:       run.Dataset,
		CreatedAt:     run.CreatedAt,
		MinSupport:    run.MinSupport,
		MinConfidence: run.MinConfidence,
		MinLift:       run.MinLift,
		MaxLen:        run.MaxLen,
		Transactions:  run.Transactions,
		Itemsets:      itemsets,
		Rules:         rs,
	}, nil
}

// Export writes the run to w in the given format.
func (m *Manager) Export(id string, w io.Writer, format string) error {
	a, err := m.Load(id)
	if err != nil {
		return err
	}
	return Encode(w, a, format)
}

// Encode writes a in the given format: indented JSON or msgpack.
func Encode(w io.Writer, a *Archive, format string) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(a); err != nil {
			return fmt.Errorf("failed to encode run as json: %w", err)
		}
	case FormatMsgpack:
		if err := msgpack.NewEncoder(w).Encode(a); err != nil {
			return fmt.Errorf("failed to encode run as msgpack: %w", err)
		}
	default:
		return fmt.Errorf("unknown export format %q (want %s or %s)", format, FormatJSON, FormatMsgpack)
	}
	return nil
}

// Decode reads an archive written by Encode.
func Decode(r io.Reader, format string) (*Archive, error) {
	var a Archive
	switch format {
	case FormatJSON, "":
		if err := json.NewDecoder(r).Decode(&a); err != nil {
			return nil, fmt.Errorf("failed to decode json run: %w", err)
		}
	case FormatMsgpack:
		if err := msgpack.NewDecoder(r).Decode(&a); err != nil {
			return nil, fmt.Errorf("failed to decode msgpack run: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown export format %q (want %s or %s)", format, FormatJSON, FormatMsgpack)
	}
	return &a, nil
}

// CleanupOldRuns removes runs older than retention, both the archive file
// and the database rows. Returns the number of runs removed.
func (m *Manager) CleanupOldRuns(retention time.Duration) (int, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}

	old, err := m.store.ListRunsBefore(time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to list runs: %w", err)
	}

	deleted := 0
	for _, run := range old {
		if run.RunPath != "" {
			if err := os.Remove(run.RunPath); err != nil && !os.IsNotExist(err) {
				return deleted, fmt.Errorf("failed to delete run file %s: %w", run.RunPath, err)
			}
		}
		if err := m.store.DeleteRun(run.ID); err != nil {
			return deleted, err
		}
		deleted++
	}

	if deleted > 0 {
		m.logger.Info("pruned old runs", zap.Int("count", deleted), zap.Duration("retention", retention))
	}

	return deleted, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
