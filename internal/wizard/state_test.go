package wizard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sportsbet/internal/dataloader"
	"sportsbet/internal/wizard"
)

// populateAll fills every pipeline field as if all stages had completed.
func populateAll(state *wizard.PipelineState) {
	oddsType := "market_average"
	state.SetSelectedSport("Soccer")
	state.SetAvailableParams(&wizard.FilterTable{
		Columns: []string{"league"},
		Rows:    []wizard.FilterRow{{ID: 1, Params: dataloader.ParamRecord{"league": "E0"}}},
	})
	state.SetSelectedParamRows([]wizard.FilterRow{{ID: 1, Params: dataloader.ParamRecord{"league": "E0"}}})
	state.SetLoader(&stubLoader{})
	state.SetAvailableOddsTypes([]string{"market_average"})
	state.SetOddsType(&oddsType)
	state.SetDropNaThreshold(0.5)
	state.SetTrainTables(&dataloader.TrainData{Features: &dataloader.Table{}})
	state.SetFixtureTables(&dataloader.FixturesData{Features: &dataloader.Table{}})
}

func TestInvalidateFromClearsOwnedAndLaterStages(t *testing.T) {
	tests := []struct {
		name  string
		stage wizard.Stage
	}{
		{"from sport select", wizard.StageSportSelect},
		{"from filter select", wizard.StageFilterSelect},
		{"from extraction config", wizard.StageExtractionConfig},
		{"from data materialize", wizard.StageDataMaterialize},
		{"from export", wizard.StageExport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := wizard.NewPipelineState(wizard.NewBus())
			populateAll(state)

			state.InvalidateFrom(tt.stage)

			for _, stage := range wizard.Stages() {
				for _, topic := range stage.OwnedTopics() {
					present := topicPresent(state, topic)
					if stage >= tt.stage {
						assert.False(t, present, "topic %s should be cleared", topic)
					} else {
						assert.True(t, present, "topic %s should survive", topic)
					}
				}
			}
			// The sport selection itself is only cleared by a full reset.
			_, ok := state.SelectedSport()
			assert.True(t, ok)
		})
	}
}

func TestInvalidateFromBumpsGenerations(t *testing.T) {
	state := wizard.NewPipelineState(wizard.NewBus())

	before := state.Generation(wizard.StageDataMaterialize)
	state.InvalidateFrom(wizard.StageFilterSelect)

	assert.Equal(t, before, state.Generation(wizard.StageSportSelect))
	assert.Equal(t, before+1, state.Generation(wizard.StageFilterSelect))
	assert.Equal(t, before+1, state.Generation(wizard.StageDataMaterialize))
}

func TestInvalidateEmptyStageStillEmitsEvents(t *testing.T) {
	bus := wizard.NewBus()
	state := wizard.NewPipelineState(bus)

	var cleared []wizard.Topic
	bus.SubscribeAll(func(e wizard.Event) {
		if e.Kind == wizard.EventCleared {
			cleared = append(cleared, e.Topic)
		}
	})

	// Nothing is populated; listeners must still see the clears.
	state.InvalidateFrom(wizard.StageDataMaterialize)
	assert.Equal(t, []wizard.Topic{wizard.TopicTrainTables, wizard.TopicFixtureTables}, cleared)

	// A second identical invalidation emits again.
	cleared = nil
	state.InvalidateFrom(wizard.StageDataMaterialize)
	assert.Equal(t, []wizard.Topic{wizard.TopicTrainTables, wizard.TopicFixtureTables}, cleared)
}

func TestInvalidationEventsAscendStageOrder(t *testing.T) {
	bus := wizard.NewBus()
	state := wizard.NewPipelineState(bus)
	populateAll(state)

	var stages []string
	bus.SubscribeAll(func(e wizard.Event) {
		if e.Kind == wizard.EventCleared {
			stages = append(stages, e.StageName)
		}
	})

	state.InvalidateFrom(wizard.StageFilterSelect)

	require.NotEmpty(t, stages)
	// Ascending stage order: listeners tear down dependents before any
	// upstream repopulation.
	assert.Equal(t, []string{
		"filter_select", "filter_select", "filter_select",
		"extraction_config", "extraction_config",
		"data_materialize", "data_materialize",
	}, stages)
}

func TestResetReturnsToInitialRecord(t *testing.T) {
	state := wizard.NewPipelineState(wizard.NewBus())
	populateAll(state)
	require.False(t, state.Empty())

	state.Reset()

	assert.True(t, state.Empty())
	_, ok := state.SelectedSport()
	assert.False(t, ok)
}

func TestGettersReportAbsenceWithoutError(t *testing.T) {
	state := wizard.NewPipelineState(wizard.NewBus())

	_, ok := state.AvailableParams()
	assert.False(t, ok)
	_, ok = state.Loader()
	assert.False(t, ok)
	_, ok = state.OddsType()
	assert.False(t, ok)
	_, ok = state.DropNaThreshold()
	assert.False(t, ok)
	_, ok = state.TrainTables()
	assert.False(t, ok)
}

func TestSetOddsTypeNilMeansNoOdds(t *testing.T) {
	state := wizard.NewPipelineState(wizard.NewBus())

	state.SetOddsType(nil)

	oddsType, ok := state.OddsType()
	assert.True(t, ok)
	assert.Nil(t, oddsType)
}

func topicPresent(state *wizard.PipelineState, topic wizard.Topic) bool {
	switch topic {
	case wizard.TopicSelectedSport:
		_, ok := state.SelectedSport()
		return ok
	case wizard.TopicAvailableParams:
		_, ok := state.AvailableParams()
		return ok
	case wizard.TopicSelectedParamRows:
		_, ok := state.SelectedParamRows()
		return ok
	case wizard.TopicLoader:
		_, ok := state.Loader()
		return ok
	case wizard.TopicAvailableOddsTypes:
		_, ok := state.AvailableOddsTypes()
		return ok
	case wizard.TopicOddsType:
		_, ok := state.OddsType()
		return ok
	case wizard.TopicDropNaThreshold:
		_, ok := state.DropNaThreshold()
		return ok
	case wizard.TopicTrainTables:
		_, ok := state.TrainTables()
		return ok
	case wizard.TopicFixtureTables:
		_, ok := state.FixtureTables()
		return ok
	}
	return false
}
