package wizard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sportsbet/internal/wizard"
)

func TestStageOrder(t *testing.T) {
	stages := wizard.Stages()
	assert.Equal(t, []wizard.Stage{
		wizard.StageSportSelect,
		wizard.StageFilterSelect,
		wizard.StageExtractionConfig,
		wizard.StageDataMaterialize,
		wizard.StageExport,
	}, stages)

	next, ok := wizard.StageSportSelect.Next()
	assert.True(t, ok)
	assert.Equal(t, wizard.StageFilterSelect, next)

	_, ok = wizard.StageExport.Next()
	assert.False(t, ok)
}

func TestStageString(t *testing.T) {
	tests := []struct {
		stage wizard.Stage
		want  string
	}{
		{wizard.StageSportSelect, "sport_select"},
		{wizard.StageFilterSelect, "filter_select"},
		{wizard.StageExtractionConfig, "extraction_config"},
		{wizard.StageDataMaterialize, "data_materialize"},
		{wizard.StageExport, "export"},
		{wizard.Stage(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.stage.String())
	}
}

func TestStageOwnedTopics(t *testing.T) {
	assert.Equal(t, []wizard.Topic{wizard.TopicAvailableParams}, wizard.StageSportSelect.OwnedTopics())
	assert.Equal(t, []wizard.Topic{
		wizard.TopicSelectedParamRows,
		wizard.TopicLoader,
		wizard.TopicAvailableOddsTypes,
	}, wizard.StageFilterSelect.OwnedTopics())
	assert.Empty(t, wizard.StageExport.OwnedTopics())
}

func TestStagePreconditions(t *testing.T) {
	state := wizard.NewPipelineState(wizard.NewBus())

	// Everything beyond the first stage requires upstream output.
	assert.Error(t, wizard.StageSportSelect.CheckPrecondition(state))
	assert.Error(t, wizard.StageFilterSelect.CheckPrecondition(state))
	assert.Error(t, wizard.StageExtractionConfig.CheckPrecondition(state))

	state.SetSelectedSport("Soccer")
	assert.NoError(t, wizard.StageSportSelect.CheckPrecondition(state))
	assert.Error(t, wizard.StageFilterSelect.CheckPrecondition(state))

	state.SetAvailableParams(&wizard.FilterTable{})
	assert.NoError(t, wizard.StageFilterSelect.CheckPrecondition(state))
}
