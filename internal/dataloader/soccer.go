package dataloader

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// SportSoccer is the sport key served by SoccerProvider.
const SportSoccer = "Soccer"

// soccerDivision binds a league/division pair to the upstream CSV code.
type soccerDivision struct {
	League   string
	Division int
	Code     string
}

// Divisions of the leagues published by the upstream CSV archive.
var soccerDivisions = []soccerDivision{
	{"England", 1, "E0"},
	{"England", 2, "E1"},
	{"England", 3, "E2"},
	{"Scotland", 1, "SC0"},
	{"Scotland", 2, "SC1"},
	{"Germany", 1, "D1"},
	{"Germany", 2, "D2"},
	{"Italy", 1, "I1"},
	{"Italy", 2, "I2"},
	{"Spain", 1, "SP1"},
	{"Spain", 2, "SP2"},
	{"France", 1, "F1"},
	{"France", 2, "F2"},
	{"Netherlands", 1, "N1"},
	{"Belgium", 1, "B1"},
	{"Portugal", 1, "P1"},
	{"Greece", 1, "G1"},
	{"Turkey", 1, "T1"},
}

var soccerYears = []int{2020, 2021, 2022, 2023, 2024, 2025}

// Column families per odds type. Each family holds the home/draw/away
// closing prices published by the archive.
var soccerOddsColumns = map[string][]string{
	"market_average": {"AvgH", "AvgD", "AvgA"},
	"market_maximum": {"MaxH", "MaxD", "MaxA"},
}

var soccerOddsTypes = []string{"market_average", "market_maximum"}

// Columns that carry full-time results; they become targets, never features.
var soccerTargetColumns = []string{"FTHG", "FTAG", "FTR"}

// SoccerProvider serves the soccer parameter space and builds loaders
// backed by the football-data CSV archive.
type SoccerProvider struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewSoccerProvider creates a provider against the given archive base URL.
func NewSoccerProvider(baseURL string, timeout time.Duration, logger *slog.Logger) *SoccerProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &SoccerProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(slog.String("component", "dataloader.soccer")),
	}
}

// AllParams returns the league/division/year combinations the archive
// covers, ordered by league, division, year.
func (p *SoccerProvider) AllParams(ctx context.Context, sport string) ([]ParamRecord, error) {
	if sport != SportSoccer {
		return nil, fmt.Errorf("sport %q not served by soccer provider", sport)
	}
	records := make([]ParamRecord, 0, len(soccerDivisions)*len(soccerYears))
	for _, div := range soccerDivisions {
		for _, year := range soccerYears {
			records = append(records, ParamRecord{
				"league":   div.League,
				"division": div.Division,
				"year":     year,
			})
		}
	}
	return records, nil
}

// NewLoader builds a soccer loader bound to the grid. Every grid entry must
// resolve to at least one known league/division/year combination.
func (p *SoccerProvider) NewLoader(sport string, grid ParamGrid) (Loader, error) {
	if sport != SportSoccer {
		return nil, fmt.Errorf("sport %q not served by soccer provider", sport)
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("parameter grid is empty")
	}
	var targets []soccerTarget
	seen := make(map[soccerTarget]bool)
	for i, entry := range grid {
		resolved, err := resolveGridEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("grid entry %d: %w", i, err)
		}
		for _, t := range resolved {
			if !seen[t] {
				seen[t] = true
				targets = append(targets, t)
			}
		}
	}
	return &soccerLoader{provider: p, grid: grid, targets: targets}, nil
}

// soccerTarget is one season CSV to fetch.
type soccerTarget struct {
	League   string
	Division int
	Year     int
	Code     string
}

func resolveGridEntry(entry map[string][]any) ([]soccerTarget, error) {
	leagues := stringValues(entry["league"])
	divisions := intValues(entry["division"])
	years := intValues(entry["year"])
	if len(leagues) == 0 || len(divisions) == 0 || len(years) == 0 {
		return nil, fmt.Errorf("entry must constrain league, division and year")
	}
	var targets []soccerTarget
	for _, div := range soccerDivisions {
		if !containsString(leagues, div.League) || !containsInt(divisions, div.Division) {
			continue
		}
		for _, year := range years {
			if containsInt(soccerYears, year) {
				targets = append(targets, soccerTarget{div.League, div.Division, year, div.Code})
			}
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no known league/division/year combination matches")
	}
	return targets, nil
}

// soccerLoader extracts match data for a fixed set of season CSVs.
type soccerLoader struct {
	provider *SoccerProvider
	grid     ParamGrid
	targets  []soccerTarget
}

// OddsTypes returns the odds families the archive publishes.
func (l *soccerLoader) OddsTypes(ctx context.Context) ([]string, error) {
	out := make([]string, len(soccerOddsTypes))
	copy(out, soccerOddsTypes)
	return out, nil
}

// ExtractTrainData fetches every bound season CSV and splits the columns
// into features, targets and, when oddsType is set, the odds family.
func (l *soccerLoader) ExtractTrainData(ctx context.Context, oddsType *string, dropNaThres float64) (*TrainData, error) {
	var oddsCols []string
	if oddsType != nil {
		cols, ok := soccerOddsColumns[*oddsType]
		if !ok {
			return nil, fmt.Errorf("unknown odds type %q", *oddsType)
		}
		oddsCols = cols
	}

	merged := newTableBuilder()
	for _, t := range l.targets {
		url := fmt.Sprintf("%s/mmz4281/%s/%s.csv", l.provider.baseURL, seasonPath(t.Year), t.Code)
		rows, header, err := l.provider.fetchCSV(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("fetch %s %d: %w", t.Code, t.Year, err)
		}
		merged.appendSeason(t, header, rows)
	}

	features, targets, odds := merged.split(oddsCols)
	features = dropSparseColumns(features, dropNaThres)
	data := &TrainData{Features: features, Targets: targets}
	if oddsType != nil {
		data.Odds = odds
	}
	return data, nil
}

// ExtractFixturesData fetches the shared fixtures CSV and keeps the rows
// belonging to the bound divisions. Fixtures have no targets; odds are
// extracted for every known family.
func (l *soccerLoader) ExtractFixturesData(ctx context.Context) (*FixturesData, error) {
	url := fmt.Sprintf("%s/fixtures.csv", l.provider.baseURL)
	rows, header, err := l.provider.fetchCSV(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch fixtures: %w", err)
	}

	codes := make(map[string]soccerTarget)
	for _, t := range l.targets {
		codes[t.Code] = t
	}
	divIdx := indexOf(header, "Div")

	merged := newTableBuilder()
	for _, row := range rows {
		if divIdx < 0 || divIdx >= len(row) {
			continue
		}
		t, ok := codes[fmt.Sprint(row[divIdx])]
		if !ok {
			continue
		}
		merged.appendSeason(t, header, [][]any{row})
	}

	var oddsCols []string
	for _, cols := range soccerOddsColumns {
		oddsCols = append(oddsCols, cols...)
	}
	features, _, odds := merged.split(oddsCols)
	return &FixturesData{Features: features, Odds: odds}, nil
}

// serializedLoader is the transferable configuration: the sport and grid
// only, never the materialized tables.
type serializedLoader struct {
	Sport     string    `json:"sport"`
	ParamGrid ParamGrid `json:"param_grid"`
}

// Serialize encodes the loader configuration as JSON.
func (l *soccerLoader) Serialize() ([]byte, error) {
	return json.Marshal(serializedLoader{Sport: SportSoccer, ParamGrid: l.grid})
}

// fetchCSV downloads and parses one archive CSV. Cells are decoded to int,
// float or string; empty cells become nil.
func (p *SoccerProvider) fetchCSV(ctx context.Context, url string) ([][]any, []string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	var rows [][]any
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read row: %w", err)
		}
		row := make([]any, len(header))
		for i := range header {
			if i < len(record) {
				row[i] = parseCell(record[i])
			}
		}
		rows = append(rows, row)
	}
	p.logger.Debug("fetched csv", slog.String("url", url), slog.Int("rows", len(rows)))
	return rows, header, nil
}

func parseCell(s string) any {
	if s == "" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// tableBuilder merges season CSVs with differing headers into one column
// union, tagging each row with its league/division/year.
type tableBuilder struct {
	columns []string
	index   map[string]int
	rows    [][]any
}

func newTableBuilder() *tableBuilder {
	b := &tableBuilder{index: make(map[string]int)}
	for _, col := range []string{"league", "division", "year"} {
		b.index[col] = len(b.columns)
		b.columns = append(b.columns, col)
	}
	return b
}

func (b *tableBuilder) appendSeason(t soccerTarget, header []string, rows [][]any) {
	for _, col := range header {
		if _, ok := b.index[col]; !ok {
			b.index[col] = len(b.columns)
			b.columns = append(b.columns, col)
		}
	}
	for _, row := range rows {
		out := make([]any, len(b.columns))
		out[0], out[1], out[2] = t.League, t.Division, t.Year
		for i, col := range header {
			if i < len(row) {
				out[b.index[col]] = row[i]
			}
		}
		b.rows = append(b.rows, out)
	}
}

// split partitions the merged columns into features, targets and odds.
// Rows are re-projected so each output table is rectangular.
func (b *tableBuilder) split(oddsCols []string) (features, targets, odds *Table) {
	isTarget := make(map[string]bool)
	for _, c := range soccerTargetColumns {
		isTarget[c] = true
	}
	isOdds := make(map[string]bool)
	for _, c := range oddsCols {
		isOdds[c] = true
	}

	var featCols, targetCols, oddsColNames []string
	for _, col := range b.columns {
		switch {
		case isTarget[col]:
			targetCols = append(targetCols, col)
		case isOdds[col]:
			oddsColNames = append(oddsColNames, col)
		default:
			featCols = append(featCols, col)
		}
	}
	return b.project(featCols), b.project(targetCols), b.project(oddsColNames)
}

func (b *tableBuilder) project(cols []string) *Table {
	t := &Table{Columns: cols, Rows: make([][]any, 0, len(b.rows))}
	for _, row := range b.rows {
		out := make([]any, len(cols))
		for i, col := range cols {
			if idx, ok := b.index[col]; ok && idx < len(row) {
				out[i] = row[idx]
			}
		}
		t.Rows = append(t.Rows, out)
	}
	return t
}

// dropSparseColumns keeps the columns whose fraction of present values is
// at least thres. With thres 0 every column survives.
func dropSparseColumns(t *Table, thres float64) *Table {
	if t == nil || len(t.Rows) == 0 || thres <= 0 {
		return t
	}
	var keep []int
	for i := range t.Columns {
		present := 0
		for _, row := range t.Rows {
			if i < len(row) && row[i] != nil {
				present++
			}
		}
		if float64(present)/float64(len(t.Rows)) >= thres {
			keep = append(keep, i)
		}
	}
	out := &Table{Columns: make([]string, 0, len(keep)), Rows: make([][]any, 0, len(t.Rows))}
	for _, i := range keep {
		out.Columns = append(out.Columns, t.Columns[i])
	}
	for _, row := range t.Rows {
		projected := make([]any, 0, len(keep))
		for _, i := range keep {
			if i < len(row) {
				projected = append(projected, row[i])
			} else {
				projected = append(projected, nil)
			}
		}
		out.Rows = append(out.Rows, projected)
	}
	return out
}

func seasonPath(year int) string {
	// Seasons are keyed by the two-digit start and end years, e.g. the
	// 2024 season (2023-24) is "2324".
	return fmt.Sprintf("%02d%02d", (year-1)%100, year%100)
}

func stringValues(vals []any) []string {
	var out []string
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func intValues(vals []any) []int {
	var out []int
	for _, v := range vals {
		switch n := v.(type) {
		case int:
			out = append(out, n)
		case float64:
			out = append(out, int(n))
		case json.Number:
			if i, err := n.Int64(); err == nil {
				out = append(out, int(i))
			}
		}
	}
	return out
}

func containsString(vals []string, want string) bool {
	for _, v := range vals {
		if v == want {
			return true
		}
	}
	return false
}

func containsInt(vals []int, want int) bool {
	for _, v := range vals {
		if v == want {
			return true
		}
	}
	return false
}

func indexOf(cols []string, want string) int {
	for i, c := range cols {
		if c == want {
			return i
		}
	}
	return -1
}
