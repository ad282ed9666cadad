package wizard

import (
	"sportsbet/internal/dataloader"
)

// FilterRow is one selectable row of the filter table: a parameter record
// tagged with a synthetic 1-based id.
type FilterRow struct {
	ID     int                    `json:"id"`
	Params dataloader.ParamRecord `json:"params"`
}

// FilterTable is the artifact of the sport-select fetch: the parameter
// space shaped for rendering. Columns hold one entry per parameter key;
// the hidden id column is implied by FilterRow.
type FilterTable struct {
	Columns []string    `json:"columns"`
	Rows    []FilterRow `json:"rows"`
}

// topicStage maps each state topic to the stage whose lifecycle governs it.
var topicStage = map[Topic]Stage{
	TopicSelectedSport:      StageSportSelect,
	TopicAvailableParams:    StageSportSelect,
	TopicSelectedParamRows:  StageFilterSelect,
	TopicLoader:             StageFilterSelect,
	TopicAvailableOddsTypes: StageFilterSelect,
	TopicOddsType:           StageExtractionConfig,
	TopicDropNaThreshold:    StageExtractionConfig,
	TopicTrainTables:        StageDataMaterialize,
	TopicFixtureTables:      StageDataMaterialize,
}

// PipelineState is the single-session mutable aggregate. It is written
// only from the controller's run loop (single-writer discipline, so no
// internal locking) and publishes one bus event per mutation.
//
// Absence of a field is a normal condition: getters return a second ok
// result and never fail.
type PipelineState struct {
	bus *Bus

	selectedSport      string
	availableParams    *FilterTable
	selectedParamRows  []FilterRow
	loader             dataloader.Loader
	availableOddsTypes []string
	oddsType           *string
	dropNaThreshold    *float64
	trainTables        *dataloader.TrainData
	fixtureTables      *dataloader.FixturesData

	present     map[Topic]bool
	generations [numStages]uint64
}

// NewPipelineState creates an empty state publishing to the given bus.
func NewPipelineState(bus *Bus) *PipelineState {
	return &PipelineState{bus: bus, present: make(map[Topic]bool)}
}

// SelectedSport returns the chosen sport, if any.
func (s *PipelineState) SelectedSport() (string, bool) {
	return s.selectedSport, s.present[TopicSelectedSport]
}

// AvailableParams returns the fetched parameter space, if any.
func (s *PipelineState) AvailableParams() (*FilterTable, bool) {
	return s.availableParams, s.present[TopicAvailableParams]
}

// SelectedParamRows returns the confirmed filter rows, if any.
func (s *PipelineState) SelectedParamRows() ([]FilterRow, bool) {
	return s.selectedParamRows, s.present[TopicSelectedParamRows]
}

// Loader returns the constructed loader handle, if any.
func (s *PipelineState) Loader() (dataloader.Loader, bool) {
	return s.loader, s.present[TopicLoader]
}

// AvailableOddsTypes returns the fetched odds types, if any. The sentinel
// option is a display concern and is never stored here.
func (s *PipelineState) AvailableOddsTypes() ([]string, bool) {
	return s.availableOddsTypes, s.present[TopicAvailableOddsTypes]
}

// OddsType returns the configured odds type. A nil value with ok true
// means "extract without odds".
func (s *PipelineState) OddsType() (*string, bool) {
	return s.oddsType, s.present[TopicOddsType]
}

// DropNaThreshold returns the configured threshold, if set.
func (s *PipelineState) DropNaThreshold() (float64, bool) {
	if !s.present[TopicDropNaThreshold] {
		return 0, false
	}
	return *s.dropNaThreshold, true
}

// TrainTables returns the materialized training tables, if any.
func (s *PipelineState) TrainTables() (*dataloader.TrainData, bool) {
	return s.trainTables, s.present[TopicTrainTables]
}

// FixtureTables returns the materialized fixtures tables, if any.
func (s *PipelineState) FixtureTables() (*dataloader.FixturesData, bool) {
	return s.fixtureTables, s.present[TopicFixtureTables]
}

// SetSelectedSport overwrites the sport selection.
func (s *PipelineState) SetSelectedSport(sport string) {
	s.selectedSport = sport
	s.setPresent(TopicSelectedSport, sport)
}

// SetAvailableParams overwrites the fetched parameter space.
func (s *PipelineState) SetAvailableParams(t *FilterTable) {
	s.availableParams = t
	s.setPresent(TopicAvailableParams, t)
}

// SetSelectedParamRows overwrites the confirmed filter rows.
func (s *PipelineState) SetSelectedParamRows(rows []FilterRow) {
	s.selectedParamRows = rows
	s.setPresent(TopicSelectedParamRows, rows)
}

// SetLoader overwrites the loader handle. The loader value itself is
// opaque; the event carries no payload.
func (s *PipelineState) SetLoader(l dataloader.Loader) {
	s.loader = l
	s.setPresent(TopicLoader, nil)
}

// SetAvailableOddsTypes overwrites the fetched odds types.
func (s *PipelineState) SetAvailableOddsTypes(types []string) {
	s.availableOddsTypes = types
	s.setPresent(TopicAvailableOddsTypes, types)
}

// SetOddsType overwrites the configured odds type. nil means no odds.
func (s *PipelineState) SetOddsType(oddsType *string) {
	s.oddsType = oddsType
	var payload any
	if oddsType != nil {
		payload = *oddsType
	}
	s.setPresent(TopicOddsType, payload)
}

// SetDropNaThreshold overwrites the configured threshold.
func (s *PipelineState) SetDropNaThreshold(thres float64) {
	s.dropNaThreshold = &thres
	s.setPresent(TopicDropNaThreshold, thres)
}

// SetTrainTables overwrites the materialized training tables.
func (s *PipelineState) SetTrainTables(t *dataloader.TrainData) {
	s.trainTables = t
	s.setPresent(TopicTrainTables, t)
}

// SetFixtureTables overwrites the materialized fixtures tables.
func (s *PipelineState) SetFixtureTables(t *dataloader.FixturesData) {
	s.fixtureTables = t
	s.setPresent(TopicFixtureTables, t)
}

func (s *PipelineState) setPresent(topic Topic, payload any) {
	s.present[topic] = true
	s.bus.Publish(Event{Topic: topic, Kind: EventUpdated, Stage: topicStage[topic], Value: payload})
}

// Generation returns the current generation of the stage. Generations
// advance on every invalidation; a fetch completion carrying an older
// generation is stale and must be discarded.
func (s *PipelineState) Generation(stage Stage) uint64 {
	if stage < 0 || int(stage) >= numStages {
		return 0
	}
	return s.generations[stage]
}

// InvalidateFrom clears every field owned by the stage and by every later
// stage, in ascending stage order, emitting one cleared event per owned
// field. Invalidating an already-empty stage still emits its events, so
// listeners must tolerate redundant clears.
func (s *PipelineState) InvalidateFrom(stage Stage) {
	for i := int(stage); i < numStages; i++ {
		st := Stage(i)
		s.generations[i]++
		for _, topic := range st.OwnedTopics() {
			s.clear(topic)
			s.bus.Publish(Event{Topic: topic, Kind: EventCleared, Stage: st})
		}
	}
}

// Reset clears the whole pipeline including the sport selection itself,
// returning the state to its initial empty record.
func (s *PipelineState) Reset() {
	s.InvalidateFrom(StageSportSelect)
	s.clear(TopicSelectedSport)
	s.bus.Publish(Event{Topic: TopicSelectedSport, Kind: EventCleared, Stage: StageSportSelect})
}

// Empty reports whether no field is present.
func (s *PipelineState) Empty() bool {
	for _, present := range s.present {
		if present {
			return false
		}
	}
	return true
}

func (s *PipelineState) clear(topic Topic) {
	delete(s.present, topic)
	switch topic {
	case TopicSelectedSport:
		s.selectedSport = ""
	case TopicAvailableParams:
		s.availableParams = nil
	case TopicSelectedParamRows:
		s.selectedParamRows = nil
	case TopicLoader:
		s.loader = nil
	case TopicAvailableOddsTypes:
		s.availableOddsTypes = nil
	case TopicOddsType:
		s.oddsType = nil
	case TopicDropNaThreshold:
		s.dropNaThreshold = nil
	case TopicTrainTables:
		s.trainTables = nil
	case TopicFixtureTables:
		s.fixtureTables = nil
	}
}
