package store

import (
	"context"
	"database/sql"
	"sort"
	"time"
)

// Store persists analysis runs and their derived tables
type Store interface {
	Close() error

	// SaveRun inserts a run, replacing any earlier run with the same ID.
	SaveRun(ctx context.Context, r Run) error
	// GetRun returns a run with all its tables, or internalerr.ErrNotFound.
	GetRun(ctx context.Context, id string) (Run, error)
	// ListRuns returns run headers (no tables or rows), newest first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	// TopFrequencies returns one column's frequency table, ranked.
	TopFrequencies(ctx context.Context, runID, column string, limit int) ([]Frequency, error)
}

// Run is one execution of the analysis pipeline
type Run struct {
	ID               string
	CreatedAt        time.Time
	SurveyPath       string
	CostOfLivingPath string
	Policy           string
	Join             JoinStats
	Frequencies      []Frequency
	Economics        []Economics
	Rows             []JoinedRow
}

// JoinStats records how responses matched the cost-of-living table
type JoinStats struct {
	Responses      int
	Matched        int
	Unmatched      int
	MissingCountry int
	Dropped        int
}

// Frequency is one token count of one column
type Frequency struct {
	Column string
	Token  string
	Count  int64
}

// Economics is one country's compensation against local prices
type Economics struct {
	Country            string
	Responses          int64
	MedianCompensation sql.NullFloat64
	CostOfLiving       sql.NullFloat64
	CostPlusRent       sql.NullFloat64
	PurchasingPower    sql.NullFloat64
	Affordability      sql.NullFloat64
}

// JoinedRow is one response after the cost-of-living join
type JoinedRow struct {
	Row             int
	Country         sql.NullString
	Key             string
	Matched         bool
	Compensation    sql.NullFloat64
	CostOfLiving    sql.NullFloat64
	CostPlusRent    sql.NullFloat64
	PurchasingPower sql.NullFloat64
	Affordability   sql.NullFloat64
}

// RankFrequencies sorts by count descending, then token ascending.
func RankFrequencies(f []Frequency) {
	sort.Slice(f, func(i, j int) bool {
		if f[i].Count != f[j].Count {
			return f[i].Count > f[j].Count
		}
		return f[i].Token < f[j].Token
	})
}
