package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/blackwell-systems/cartrules/internal/apriori"
	"github.com/blackwell-systems/cartrules/internal/dataset"
	"github.com/blackwell-systems/cartrules/internal/rules"
)

// Dataset operations

// SaveDataset stores ds under ds.Name, replacing any dataset already stored
// under that name. Transaction order is preserved. Returns the dataset ID.
func (s *Store) SaveDataset(ds *dataset.Dataset, source string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM datasets WHERE name = ?`, ds.Name); err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("failed to replace dataset %s: %w", ds.Name, checkSchema(err))
	}

	result, err := tx.Exec(`
		INSERT INTO datasets (name, source, loaded_at, transaction_count, item_count)
		VALUES (?, ?, ?, ?, ?)
	`,
		ds.Name,
		source,
		time.Now().UTC().Format(time.RFC3339),
		ds.Len(),
		len(ds.Items()),
	)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("failed to insert dataset %s: %w", ds.Name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("failed to get dataset ID: %w", err)
	}

	txnStmt, err := tx.Prepare(`INSERT INTO transactions (dataset_id, txn_id, position) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer txnStmt.Close()

	itemStmt, err := tx.Prepare(`INSERT OR IGNORE INTO transaction_items (dataset_id, txn_id, item) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer itemStmt.Close()

	for pos, t := range ds.Transactions {
		if _, err := txnStmt.Exec(id, t.ID, pos); err != nil {
			tx.Rollback() //nolint:errcheck
			return 0, fmt.Errorf("failed to insert transaction %s: %w", t.ID, err)
		}
		for _, item := range t.Items {
			if _, err := itemStmt.Exec(id, t.ID, item); err != nil {
				tx.Rollback() //nolint:errcheck
				return 0, fmt.Errorf("failed to insert item %s of transaction %s: %w", item, t.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit dataset %s: %w", ds.Name, err)
	}

	return id, nil
}

// GetDataset loads the named dataset with its transactions in load order.
func (s *Store) GetDataset(name string) (*dataset.Dataset, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM datasets WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("dataset %s %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset %s: %w", name, checkSchema(err))
	}

	query := `
		SELECT t.txn_id, i.item
		FROM transactions t
		LEFT JOIN transaction_items i ON i.dataset_id = t.dataset_id AND i.txn_id = t.txn_id
		WHERE t.dataset_id = ?
		ORDER BY t.position, i.item
	`

	rows, err := s.db.Query(query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions for %s: %w", name, err)
	}
	defer rows.Close()

	ds := dataset.New(name)
	for rows.Next() {
		var txnID string
		var item sql.NullString
		if err := rows.Scan(&txnID, &item); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}

		n := len(ds.Transactions)
		if n == 0 || ds.Transactions[n-1].ID != txnID {
			ds.Transactions = append(ds.Transactions, dataset.Transaction{ID: txnID, Items: []string{}})
			n++
		}
		if item.Valid {
			ds.Transactions[n-1].Items = append(ds.Transactions[n-1].Items, item.String)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return ds, nil
}

// ListDatasets returns all stored datasets ordered by name.
func (s *Store) ListDatasets() ([]*DatasetInfo, error) {
	query := `
		SELECT id, name, source, loaded_at, transaction_count, item_count
		FROM datasets
		ORDER BY name
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", checkSchema(err))
	}
	defer rows.Close()

	var infos []*DatasetInfo
	for rows.Next() {
		var info DatasetInfo
		var source sql.NullString
		var loadedAt string

		if err := rows.Scan(&info.ID, &info.Name, &source, &loadedAt, &info.Transactions, &info.Items); err != nil {
			return nil, fmt.Errorf("failed to scan dataset row: %w", err)
		}
		info.Source = source.String

		info.LoadedAt, err = time.Parse(time.RFC3339, loadedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse loaded_at for %s: %w", info.Name, err)
		}

		infos = append(infos, &info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating datasets: %w", err)
	}

	return infos, nil
}

// DeleteDataset removes a dataset and its transactions.
func (s *Store) DeleteDataset(name string) error {
	result, err := s.db.Exec(`DELETE FROM datasets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete dataset %s: %w", name, checkSchema(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("dataset %s %w", name, ErrNotFound)
	}

	return nil
}

// Run operations

// SaveRun records a run with its itemsets and rules in one transaction.
// The count fields of run are filled from the slices.
func (s *Store) SaveRun(run *Run, itemsets []apriori.Itemset, rs []rules.Rule) error {
	run.Itemsets = len(itemsets)
	run.Rules = len(rs)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO runs
		(id, dataset, created_at, min_support, min_confidence, min_lift, max_len, transaction_count, itemset_count, rule_count, run_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Dataset,
		run.CreatedAt.UTC().Format(time.RFC3339),
		run.MinSupport,
		run.MinConfidence,
		run.MinLift,
		run.MaxLen,
		run.Transactions,
		run.Itemsets,
		run.Rules,
		run.RunPath,
	)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("failed to insert run %s: %w", run.ID, checkSchema(err))
	}

	itemsetStmt, err := tx.Prepare(`INSERT INTO run_itemsets (run_id, position, items, count) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer itemsetStmt.Close()

	for i, is := range itemsets {
		itemsJSON, err := json.Marshal(is.Items)
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("failed to marshal itemset: %w", err)
		}
		if _, err := itemsetStmt.Exec(run.ID, i, string(itemsJSON), is.Count); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("failed to insert itemset %s: %w", is, err)
		}
	}

	ruleStmt, err := tx.Prepare(`
		INSERT INTO run_rules
		(run_id, position, antecedent, consequent, support, confidence, lift, leverage, conviction)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer ruleStmt.Close()

	for i, r := range rs {
		antJSON, err := json.Marshal(r.Antecedent)
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("failed to marshal antecedent: %w", err)
		}
		consJSON, err := json.Marshal(r.Consequent)
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("failed to marshal consequent: %w", err)
		}

		// Infinite conviction is stored as NULL.
		conviction := sql.NullFloat64{Float64: r.Conviction, Valid: !math.IsInf(r.Conviction, 0)}

		if _, err := ruleStmt.Exec(run.ID, i, string(antJSON), string(consJSON),
			r.Support, r.Confidence, r.Lift, r.Leverage, conviction); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("failed to insert rule %s: %w", r, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}

	return nil
}

const runColumns = `id, dataset, created_at, min_support, min_confidence, min_lift, max_len,
		transaction_count, itemset_count, rule_count, run_path`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var createdAt string
	var runPath sql.NullString

	err := row.Scan(
		&run.ID,
		&run.Dataset,
		&createdAt,
		&run.MinSupport,
		&run.MinConfidence,
		&run.MinLift,
		&run.MaxLen,
		&run.Transactions,
		&run.Itemsets,
		&run.Rules,
		&runPath,
	)
	if err != nil {
		return nil, err
	}
	run.RunPath = runPath.String

	run.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for run %s: %w", run.ID, err)
	}

	return &run, nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, checkSchema(err))
	}

	return run, nil
}

// ResolveRunID expands a unique ID prefix to the full run ID.
func (s *Store) ResolveRunID(prefix string) (string, error) {
	rows, err := s.db.Query(`SELECT id FROM runs WHERE substr(id, 1, ?) = ? LIMIT 2`, len(prefix), prefix)
	if err != nil {
		return "", fmt.Errorf("failed to resolve run %s: %w", prefix, checkSchema(err))
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("error iterating runs: %w", err)
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("run %s %w", prefix, ErrNotFound)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("run prefix %s is ambiguous", prefix)
	}
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns() ([]*Run, error) {
	return s.queryRuns(`SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, rowid DESC`)
}

// ListRunsBefore returns runs created strictly before cutoff, oldest first.
func (s *Store) ListRunsBefore(cutoff time.Time) ([]*Run, error) {
	return s.queryRuns(`SELECT `+runColumns+` FROM runs WHERE created_at < ? ORDER BY created_at, rowid`,
		cutoff.UTC().Format(time.RFC3339))
}

func (s *Store) queryRuns(query string, args ...any) ([]*Run, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", checkSchema(err))
	}
	defer rows.Close()

	var list []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		list = append(list, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return list, nil
}

// GetRunItemsets returns the itemsets of a run in their mined order.
func (s *Store) GetRunItemsets(runID string) ([]apriori.Itemset, error) {
	query := `
		SELECT ri.items, ri.count, r.transaction_count
		FROM run_itemsets ri
		JOIN runs r ON r.id = ri.run_id
		WHERE ri.run_id = ?
		ORDER BY ri.position
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get itemsets for run %s: %w", runID, checkSchema(err))
	}
	defer rows.Close()

	itemsets := []apriori.Itemset{}
	for rows.Next() {
		var is apriori.Itemset
		var itemsJSON string

		if err := rows.Scan(&itemsJSON, &is.Count, &is.Total); err != nil {
			return nil, fmt.Errorf("failed to scan itemset row: %w", err)
		}
		if err := json.Unmarshal([]byte(itemsJSON), &is.Items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal itemset for run %s: %w", runID, err)
		}

		itemsets = append(itemsets, is)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating itemsets: %w", err)
	}

	return itemsets, nil
}

// GetRunRules returns the rules of a run in their ranked order.
func (s *Store) GetRunRules(runID string) ([]rules.Rule, error) {
	query := `
		SELECT antecedent, consequent, support, confidence, lift, leverage, conviction
		FROM run_rules
		WHERE run_id = ?
		ORDER BY position
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rules for run %s: %w", runID, checkSchema(err))
	}
	defer rows.Close()

	rs := []rules.Rule{}
	for rows.Next() {
		var r rules.Rule
		var antJSON, consJSON string
		var conviction sql.NullFloat64

		if err := rows.Scan(&antJSON, &consJSON, &r.Support, &r.Confidence, &r.Lift, &r.Leverage, &conviction); err != nil {
			return nil, fmt.Errorf("failed to scan rule row: %w", err)
		}
		if err := json.Unmarshal([]byte(antJSON), &r.Antecedent); err != nil {
			return nil, fmt.Errorf("failed to unmarshal antecedent for run %s: %w", runID, err)
		}
		if err := json.Unmarshal([]byte(consJSON), &r.Consequent); err != nil {
			return nil, fmt.Errorf("failed to unmarshal consequent for run %s: %w", runID, err)
		}

		r.Conviction = math.Inf(1)
		if conviction.Valid {
			r.Conviction = conviction.Float64
		}

		rs = append(rs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rs, nil
}

// DeleteRun removes a run with its itemsets and rules.
func (s *Store) DeleteRun(id string) error {
	result, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, checkSchema(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("run %s %w", id, ErrNotFound)
	}

	return nil
}
