package store

import "time"

// DatasetInfo summarises a stored transaction dataset.
type DatasetInfo struct {
	ID           int64
	Name         string
	Source       string // file the dataset was loaded from, if any
	LoadedAt     time.Time
	Transactions int
	Items        int // distinct item labels
}

// Run records one mining pass and the thresholds it used.
type Run struct {
	ID            string
	Dataset       string
	CreatedAt     time.Time
	MinSupport    float64
	MinConfidence float64
	MinLift       float64
	MaxLen        int
	Transactions  int
	Itemsets      int
	Rules         int
	RunPath       string // archive file written alongside the row
}
