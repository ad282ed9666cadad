package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"sportsbet/internal/dataloader"
)

// OddsSentinelNone is the display-only "no odds" option appended to the
// odds-type choices. It is never stored in PipelineState and maps to a nil
// odds type at the loader boundary.
const OddsSentinelNone = "none"

// ErrControllerStopped is returned for calls after Stop.
var ErrControllerStopped = errors.New("controller stopped")

// SportOption is one entry of the sport selector. Recognized sports
// without a supported loader yield ErrNotYetSupported on advance.
type SportOption struct {
	Name      string `json:"name"`
	Supported bool   `json:"supported"`
}

// SportOptions returns the selectable sports in display order.
func SportOptions() []SportOption {
	return []SportOption{
		{Name: dataloader.SportSoccer, Supported: true},
		{Name: "NBA"},
		{Name: "NFL"},
		{Name: "NHL"},
	}
}

// Controls is the enablement state of the wizard's controls. Export is a
// visibility flag: the export action is revealed only after the tables are
// materialized and the final advance has run.
type Controls struct {
	Sport      bool `json:"sport"`
	Filter     bool `json:"filter"`
	Extraction bool `json:"extraction"`
	Export     bool `json:"export"`
}

func initialControls() Controls {
	return Controls{Sport: true}
}

// Snapshot is the full render-facing view of one session, served to the
// rendering layer for its initial draw.
type Snapshot struct {
	Cursor          string                   `json:"cursor"`
	Controls        Controls                 `json:"controls"`
	Sports          []SportOption            `json:"sports"`
	SelectedSport   string                   `json:"selected_sport,omitempty"`
	FilterTable     *FilterTable             `json:"filter_table,omitempty"`
	SelectedRowIDs  []int                    `json:"selected_row_ids,omitempty"`
	OddsOptions     []string                 `json:"odds_options,omitempty"`
	OddsType        *string                  `json:"odds_type,omitempty"`
	DropNaThreshold *float64                 `json:"drop_na_threshold,omitempty"`
	TrainTables     *dataloader.TrainData    `json:"train_tables,omitempty"`
	FixtureTables   *dataloader.FixturesData `json:"fixture_tables,omitempty"`
}

// Controller is the stage transition state machine. All state mutation
// happens on its run loop: inbound calls post an action and wait for its
// reply, fetch completions are resumed onto the same loop by the
// coordinator. That makes the loop the single writer of PipelineState.
type Controller struct {
	state    *PipelineState
	bus      *Bus
	coord    *FetchCoordinator
	provider dataloader.Provider
	logger   *slog.Logger

	cursor   Stage
	controls Controls

	// Selections captured before their stage commits. They enter
	// PipelineState only when the owning transition completes.
	pendingRows      []FilterRow
	pendingOddsType  *string
	pendingThreshold *float64

	actions chan func()
	quit    chan struct{}

	// fetchCtx bounds the external calls; set by Start.
	fetchCtx context.Context
}

// NewController wires a controller over the given provider. workers bounds
// the fetch worker pool.
func NewController(provider dataloader.Provider, bus *Bus, workers int64, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		state:    NewPipelineState(bus),
		bus:      bus,
		provider: provider,
		logger:   logger.With(slog.String("component", "wizard.controller")),
		cursor:   StageSportSelect,
		controls: initialControls(),
		actions:  make(chan func(), 16),
		quit:     make(chan struct{}),
	}
	c.coord = NewFetchCoordinator(workers, c.post, logger)
	return c
}

// Bus returns the notification bus the controller publishes to.
func (c *Controller) Bus() *Bus {
	return c.bus
}

// Start launches the run loop. ctx bounds every external fetch the
// controller issues.
func (c *Controller) Start(ctx context.Context) {
	c.fetchCtx = ctx
	go c.run()
}

// Stop terminates the run loop. Pending fetch completions are dropped.
func (c *Controller) Stop() {
	close(c.quit)
}

func (c *Controller) run() {
	for {
		select {
		case fn := <-c.actions:
			fn()
		case <-c.quit:
			return
		}
	}
}

// post schedules fn onto the run loop without waiting.
func (c *Controller) post(fn func()) {
	select {
	case c.actions <- fn:
	case <-c.quit:
	}
}

// do runs fn on the loop and returns its result.
func (c *Controller) do(fn func() error) error {
	reply := make(chan error, 1)
	select {
	case c.actions <- func() { reply <- fn() }:
	case <-c.quit:
		return ErrControllerStopped
	}
	select {
	case err := <-reply:
		return err
	case <-c.quit:
		return ErrControllerStopped
	}
}

// SelectSport records the sport selection. A no-op while the sport control
// is disabled; that is what prevents re-entrant fetches after advancing.
func (c *Controller) SelectSport(sport string) error {
	return c.do(func() error {
		if !c.controls.Sport {
			return nil
		}
		if !recognizedSport(sport) {
			return fmt.Errorf("%w: %q", ErrUnknownSport, sport)
		}
		c.state.SetSelectedSport(sport)
		return nil
	})
}

// ConfirmFilterSelection records the selected filter rows by id. An empty
// selection is recorded as-is; advancing with it yields ErrNoSelection.
func (c *Controller) ConfirmFilterSelection(ids []int) error {
	return c.do(func() error {
		if !c.controls.Filter {
			return nil
		}
		table, ok := c.state.AvailableParams()
		if !ok {
			return ErrNoSelection
		}
		byID := make(map[int]FilterRow, len(table.Rows))
		for _, row := range table.Rows {
			byID[row.ID] = row
		}
		rows := make([]FilterRow, 0, len(ids))
		for _, id := range ids {
			row, ok := byID[id]
			if !ok {
				return fmt.Errorf("%w: unknown filter row id %d", ErrInvalidConfiguration, id)
			}
			rows = append(rows, row)
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
		c.pendingRows = rows
		return nil
	})
}

// SetExtractionConfig records the odds type and drop-NA threshold. Both
// are validated at capture time: the threshold must lie in [0, 1] and the
// odds type must be nil, the sentinel, or a fetched odds type.
func (c *Controller) SetExtractionConfig(oddsType *string, threshold *float64) error {
	return c.do(func() error {
		if !c.controls.Extraction {
			return nil
		}
		if threshold != nil && (*threshold < 0 || *threshold > 1) {
			return fmt.Errorf("%w: drop NA threshold %v outside [0, 1]", ErrInvalidConfiguration, *threshold)
		}
		if oddsType != nil && *oddsType != OddsSentinelNone {
			available, _ := c.state.AvailableOddsTypes()
			if !containsStr(available, *oddsType) {
				return fmt.Errorf("%w: odds type %q not available", ErrInvalidConfiguration, *oddsType)
			}
		}
		c.pendingOddsType = oddsType
		c.pendingThreshold = threshold
		return nil
	})
}

// Advance runs the current stage's transition. Precondition failures are
// returned synchronously; fetch-backed transitions return nil once the
// fetch is accepted and complete asynchronously, advancing the cursor and
// publishing populate events from the loop.
func (c *Controller) Advance() error {
	return c.do(func() error {
		switch c.cursor {
		case StageSportSelect:
			return c.advanceSportSelect()
		case StageFilterSelect:
			return c.advanceFilterSelect()
		case StageExtractionConfig:
			return c.advanceExtractionConfig()
		case StageDataMaterialize:
			return c.advanceDataMaterialize()
		default:
			// Terminal; only reset leaves this state.
			return nil
		}
	})
}

// Reset clears the whole pipeline, restores every control to its initial
// state and returns the cursor to sport selection. Usable from any state,
// including mid-fetch: pending results are invalidated by the generation
// bump and discarded on arrival.
func (c *Controller) Reset() error {
	return c.do(func() error {
		c.state.Reset()
		c.pendingRows = nil
		c.pendingOddsType = nil
		c.pendingThreshold = nil
		c.cursor = StageSportSelect
		c.setControls(initialControls())
		c.logger.Info("wizard reset")
		return nil
	})
}

// Export serializes the loader's configuration (sport and filter grid, not
// the materialized tables). Idempotent: it reads PipelineState and never
// writes it.
func (c *Controller) Export() ([]byte, error) {
	var payload []byte
	err := c.do(func() error {
		if !c.controls.Export {
			return ErrNoSelection
		}
		loader, ok := c.state.Loader()
		if !ok {
			return ErrNoSelection
		}
		data, err := loader.Serialize()
		if err != nil {
			return fmt.Errorf("serialize loader: %w", err)
		}
		payload = data
		return nil
	})
	return payload, err
}

// Snapshot returns the render-facing view of the session.
func (c *Controller) Snapshot() Snapshot {
	var snap Snapshot
	_ = c.do(func() error {
		snap = Snapshot{
			Cursor:   c.cursor.String(),
			Controls: c.controls,
			Sports:   SportOptions(),
		}
		if sport, ok := c.state.SelectedSport(); ok {
			snap.SelectedSport = sport
		}
		if table, ok := c.state.AvailableParams(); ok {
			snap.FilterTable = table
		}
		for _, row := range c.pendingRows {
			snap.SelectedRowIDs = append(snap.SelectedRowIDs, row.ID)
		}
		if types, ok := c.state.AvailableOddsTypes(); ok {
			snap.OddsOptions = displayOddsOptions(types)
		}
		if oddsType, ok := c.state.OddsType(); ok {
			snap.OddsType = oddsType
		}
		if thres, ok := c.state.DropNaThreshold(); ok {
			snap.DropNaThreshold = &thres
		}
		if train, ok := c.state.TrainTables(); ok {
			snap.TrainTables = train
		}
		if fixtures, ok := c.state.FixtureTables(); ok {
			snap.FixtureTables = fixtures
		}
		return nil
	})
	return snap
}

func (c *Controller) advanceSportSelect() error {
	sport, ok := c.state.SelectedSport()
	if !ok || sport == "" {
		return ErrNoSelection
	}
	if !supportedSport(sport) {
		return ErrNotYetSupported
	}
	if c.coord.InFlight(StageSportSelect) {
		return ErrFetchInProgress
	}

	prev := c.controls
	c.setControls(Controls{})
	err := c.coord.Start(c.fetchCtx, StageSportSelect, c.state,
		func(ctx context.Context) (any, error) {
			records, err := c.provider.AllParams(ctx, sport)
			if err != nil {
				return nil, err
			}
			if err := dataloader.ValidateParams(records); err != nil {
				return nil, fmt.Errorf("malformed parameter space: %w", err)
			}
			return records, nil
		},
		func(result any, err error) {
			if err != nil {
				c.failFetch(StageSportSelect, err, prev)
				return
			}
			c.state.SetAvailableParams(buildFilterTable(result.([]dataloader.ParamRecord)))
			c.cursor = StageFilterSelect
			c.setControls(Controls{Filter: true})
			c.logger.Info("advanced to filter selection", slog.String("sport", sport))
		})
	if err != nil {
		c.setControls(prev)
	}
	return err
}

func (c *Controller) advanceFilterSelect() error {
	if len(c.pendingRows) == 0 {
		return ErrNoSelection
	}
	if c.coord.InFlight(StageFilterSelect) {
		return ErrFetchInProgress
	}
	sport, _ := c.state.SelectedSport()

	records := make([]dataloader.ParamRecord, 0, len(c.pendingRows))
	for _, row := range c.pendingRows {
		records = append(records, row.Params)
	}
	grid := dataloader.BuildGrid(records)
	loader, err := c.provider.NewLoader(sport, grid)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	rows := c.pendingRows

	prev := c.controls
	c.setControls(Controls{})
	err = c.coord.Start(c.fetchCtx, StageFilterSelect, c.state,
		func(ctx context.Context) (any, error) {
			return loader.OddsTypes(ctx)
		},
		func(result any, err error) {
			if err != nil {
				c.failFetch(StageFilterSelect, err, prev)
				return
			}
			c.state.SetSelectedParamRows(rows)
			c.state.SetLoader(loader)
			c.state.SetAvailableOddsTypes(result.([]string))
			c.cursor = StageExtractionConfig
			c.setControls(Controls{Extraction: true})
			c.logger.Info("advanced to extraction config", slog.Int("selected_rows", len(rows)))
		})
	if err != nil {
		c.setControls(prev)
	}
	return err
}

func (c *Controller) advanceExtractionConfig() error {
	loader, ok := c.state.Loader()
	if !ok {
		return ErrNoSelection
	}
	if c.coord.InFlight(StageDataMaterialize) {
		return ErrFetchInProgress
	}

	oddsType := c.resolveOddsType()
	threshold := 0.0
	if c.pendingThreshold != nil {
		threshold = *c.pendingThreshold
	}
	c.state.SetOddsType(oddsType)
	c.state.SetDropNaThreshold(threshold)

	prev := c.controls
	c.setControls(Controls{})
	err := c.coord.Start(c.fetchCtx, StageDataMaterialize, c.state,
		func(ctx context.Context) (any, error) {
			train, err := loader.ExtractTrainData(ctx, oddsType, threshold)
			if err != nil {
				return nil, fmt.Errorf("extract train data: %w", err)
			}
			fixtures, err := loader.ExtractFixturesData(ctx)
			if err != nil {
				return nil, fmt.Errorf("extract fixtures data: %w", err)
			}
			return &materialized{train: train, fixtures: fixtures}, nil
		},
		func(result any, err error) {
			if err != nil {
				c.failFetch(StageDataMaterialize, err, prev)
				return
			}
			tables := result.(*materialized)
			c.state.SetTrainTables(tables.train)
			c.state.SetFixtureTables(tables.fixtures)
			c.cursor = StageDataMaterialize
			c.setControls(Controls{})
			c.logger.Info("materialized data tables",
				slog.Int("train_rows", tables.train.Features.NumRows()),
				slog.Int("fixture_rows", tables.fixtures.Features.NumRows()))
		})
	if err != nil {
		c.setControls(prev)
	}
	return err
}

func (c *Controller) advanceDataMaterialize() error {
	if err := StageExport.CheckPrecondition(c.state); err != nil {
		return err
	}
	c.cursor = StageExport
	c.setControls(Controls{Export: true})
	return nil
}

// materialized bundles the two sequential extraction results so they
// commit atomically.
type materialized struct {
	train    *dataloader.TrainData
	fixtures *dataloader.FixturesData
}

// resolveOddsType maps the captured odds choice to the loader boundary:
// the sentinel and the no-choice-no-options case become nil, no choice
// defaults to the first fetched type.
func (c *Controller) resolveOddsType() *string {
	if c.pendingOddsType != nil {
		if *c.pendingOddsType == OddsSentinelNone {
			return nil
		}
		return c.pendingOddsType
	}
	available, _ := c.state.AvailableOddsTypes()
	if len(available) == 0 {
		return nil
	}
	first := available[0]
	return &first
}

// failFetch surfaces a fetch failure and restores the pre-fetch controls
// so the user can retry the same transition. The store is untouched:
// fields already committed by the transition (the extraction config)
// stay populated and are simply overwritten when the retry commits.
func (c *Controller) failFetch(stage Stage, err error, restore Controls) {
	ferr := &FetchError{Stage: stage, Cause: err}
	c.logger.Error("stage fetch failed",
		slog.String("stage", stage.String()),
		slog.String("error", err.Error()))
	c.bus.Publish(Event{Topic: TopicFetchFailed, Kind: EventUpdated, Stage: stage, Value: ferr.Error()})
	c.setControls(restore)
}

func (c *Controller) setControls(controls Controls) {
	c.controls = controls
	c.bus.Publish(Event{Topic: TopicControls, Kind: EventUpdated, Stage: c.cursor, Value: controls})
}

// buildFilterTable shapes the fetched parameter space for rendering:
// sorted key columns and rows tagged with a dense 1-based id in input
// order.
func buildFilterTable(records []dataloader.ParamRecord) *FilterTable {
	table := &FilterTable{Rows: make([]FilterRow, 0, len(records))}
	if len(records) > 0 {
		keys := make([]string, 0, len(records[0]))
		for k := range records[0] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		table.Columns = keys
	}
	for i, rec := range records {
		table.Rows = append(table.Rows, FilterRow{ID: i + 1, Params: rec})
	}
	return table
}

// displayOddsOptions appends the sentinel "no odds" option for rendering;
// the underlying value set used for extraction never contains it.
func displayOddsOptions(types []string) []string {
	out := make([]string, 0, len(types)+1)
	out = append(out, types...)
	return append(out, OddsSentinelNone)
}

func recognizedSport(sport string) bool {
	for _, opt := range SportOptions() {
		if opt.Name == sport {
			return true
		}
	}
	return false
}

func supportedSport(sport string) bool {
	for _, opt := range SportOptions() {
		if opt.Name == sport {
			return opt.Supported
		}
	}
	return false
}

func containsStr(vals []string, want string) bool {
	for _, v := range vals {
		if v == want {
			return true
		}
	}
	return false
}
