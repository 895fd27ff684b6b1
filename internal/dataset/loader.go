package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported input formats.
const (
	FormatCSV     = "csv"
	FormatCSVLong = "csv-long"
	FormatJSON    = "json"
	FormatYAML    = "yaml"
)

// headerIDs are first-cell values that mark a CSV header row.
var headerIDs = map[string]bool{
	"id":             true,
	"txn":            true,
	"txn_id":         true,
	"transaction":    true,
	"transaction_id": true,
	"交易id":           true,
}

// DetectFormat picks a format from the file extension. Unknown extensions
// fall back to wide CSV.
func DetectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatCSV
	}
}

// Load reads a transaction file. An empty format is detected from the
// extension. The dataset is named after the file unless name is set.
func Load(path, format, name string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if format == "" {
		format = DetectFormat(path)
	}

	ds, err := Read(f, format, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ds, nil
}

// Read decodes transactions from r in the given format.
func Read(r io.Reader, format, name string) (*Dataset, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(r, name, false)
	case FormatCSVLong:
		return ReadCSV(r, name, true)
	case FormatJSON:
		return ReadJSON(r, name)
	case FormatYAML:
		return ReadYAML(r, name)
	default:
		return nil, fmt.Errorf("unsupported format %q (must be csv, csv-long, json, or yaml)", format)
	}
}

// ReadCSV reads transactions from CSV.
//
// Wide layout: one row per transaction, first column the ID, remaining
// non-empty columns the items. Long layout: one (id, item) pair per row,
// grouped by ID in first-seen order. A leading header row is skipped.
func ReadCSV(r io.Reader, name string, long bool) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}

	if len(records) > 0 && len(records[0]) > 0 && isHeader(records[0][0]) {
		records = records[1:]
	}

	ds := New(name)
	if !long {
		for _, rec := range records {
			if len(rec) == 0 || strings.TrimSpace(rec[0]) == "" {
				continue
			}
			ds.Add(rec[0], rec[1:]...)
		}
		return ds, nil
	}

	var order []string
	grouped := make(map[string][]string)
	for line, rec := range records {
		if len(rec) < 2 {
			return nil, fmt.Errorf("line %d: expected id,item pair", line+1)
		}
		id := strings.TrimSpace(rec[0])
		if _, ok := grouped[id]; !ok {
			order = append(order, id)
		}
		grouped[id] = append(grouped[id], rec[1])
	}
	for _, id := range order {
		ds.Add(id, grouped[id]...)
	}
	return ds, nil
}

func isHeader(cell string) bool {
	cell = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cell), "\ufeff"))
	return headerIDs[cell]
}

// record is the on-disk shape of a transaction in JSON and YAML files.
type record struct {
	ID    flexID   `json:"id" yaml:"id"`
	Items []string `json:"items" yaml:"items"`
}

// flexID accepts both numeric and string identifiers.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("transaction id must be a string or number: %w", err)
	}
	*id = flexID(n.String())
	return nil
}

func (id *flexID) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: transaction id must be a scalar", value.Line)
	}
	*id = flexID(value.Value)
	return nil
}

// ReadJSON reads a JSON array of {"id": ..., "items": [...]} objects.
func ReadJSON(r io.Reader, name string) (*Dataset, error) {
	var recs []record
	dec := json.NewDecoder(r)
	if err := dec.Decode(&recs); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}
	return fromRecords(name, recs), nil
}

// ReadYAML reads a YAML sequence of {id, items} mappings.
func ReadYAML(r io.Reader, name string) (*Dataset, error) {
	var recs []record
	if err := yaml.NewDecoder(r).Decode(&recs); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode yaml: %w", err)
	}
	return fromRecords(name, recs), nil
}

func fromRecords(name string, recs []record) *Dataset {
	ds := New(name)
	for _, rec := range recs {
		ds.Add(string(rec.ID), rec.Items...)
	}
	return ds
}
