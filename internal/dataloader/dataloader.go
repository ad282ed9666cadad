// Package dataloader defines the data-loading collaborator the wizard core
// drives: a Provider enumerates the parameter space of a sport and builds
// Loader handles bound to a filtered slice of it, and a Loader materializes
// training and fixtures tables and serializes its own configuration.
//
// All calls that touch the network accept a context and are assumed slow;
// the wizard never invokes them on its interaction loop.
package dataloader

import (
	"context"
	"fmt"
	"sort"
)

// ParamRecord is one combination of the parameter space, a mapping from
// parameter key to scalar value (string, int or float).
type ParamRecord map[string]any

// ParamGrid maps each parameter key to the list of admissible values.
// The wizard builds one single-valued entry per selected filter row.
type ParamGrid []map[string][]any

// Table is a rectangular result set: column names plus rows of scalar
// values. A nil cell marks a missing value.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// NumRows returns the number of rows in the table.
func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// TrainData holds the three related training tables. Odds is nil when the
// extraction ran without an odds type.
type TrainData struct {
	Features *Table `json:"features"`
	Targets  *Table `json:"targets"`
	Odds     *Table `json:"odds,omitempty"`
}

// FixturesData holds the fixtures tables. Fixtures never carry targets.
type FixturesData struct {
	Features *Table `json:"features"`
	Odds     *Table `json:"odds,omitempty"`
}

// Loader is an opaque handle bound to a sport and a parameter grid.
type Loader interface {
	// OddsTypes returns the odds families available for the bound grid.
	// The result may be empty.
	OddsTypes(ctx context.Context) ([]string, error)

	// ExtractTrainData materializes the training tables. A nil oddsType
	// extracts without odds; dropNaThres in [0,1] drops feature columns
	// whose fraction of present values is below the threshold.
	ExtractTrainData(ctx context.Context, oddsType *string, dropNaThres float64) (*TrainData, error)

	// ExtractFixturesData materializes the upcoming fixtures tables.
	ExtractFixturesData(ctx context.Context) (*FixturesData, error)

	// Serialize encodes the loader's configuration (sport and grid, not
	// any materialized data) to a transferable byte stream.
	Serialize() ([]byte, error)
}

// Provider enumerates parameter spaces and constructs loaders.
type Provider interface {
	// AllParams returns the full parameter space for the sport, one
	// record per combination, in a stable order.
	AllParams(ctx context.Context, sport string) ([]ParamRecord, error)

	// NewLoader builds a loader bound to the sport and grid. The grid
	// must be non-empty.
	NewLoader(sport string, grid ParamGrid) (Loader, error)
}

// ValidateParams checks the structural shape of a fetched parameter space:
// at least one record, no empty records, and a uniform key set across
// records. Domain correctness of the values is not checked.
func ValidateParams(records []ParamRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("parameter space is empty")
	}
	keys := recordKeys(records[0])
	if len(keys) == 0 {
		return fmt.Errorf("parameter record 0 has no keys")
	}
	for i, rec := range records[1:] {
		got := recordKeys(rec)
		if len(got) != len(keys) {
			return fmt.Errorf("parameter record %d has %d keys, want %d", i+1, len(got), len(keys))
		}
		for j := range keys {
			if got[j] != keys[j] {
				return fmt.Errorf("parameter record %d key %q, want %q", i+1, got[j], keys[j])
			}
		}
	}
	return nil
}

// BuildGrid maps selected parameter records to a grid: for each record,
// each field becomes a single-valued list keyed by field name.
func BuildGrid(records []ParamRecord) ParamGrid {
	grid := make(ParamGrid, 0, len(records))
	for _, rec := range records {
		entry := make(map[string][]any, len(rec))
		for k, v := range rec {
			entry[k] = []any{v}
		}
		grid = append(grid, entry)
	}
	return grid
}

func recordKeys(rec ParamRecord) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
