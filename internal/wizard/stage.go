package wizard

// Stage is one ordered step of the wizard. Stages are strictly ordered;
// invalidating a stage invalidates every later one.
type Stage int

const (
	StageSportSelect Stage = iota
	StageFilterSelect
	StageExtractionConfig
	StageDataMaterialize
	StageExport

	numStages = int(StageExport) + 1
)

var stageNames = [numStages]string{
	"sport_select",
	"filter_select",
	"extraction_config",
	"data_materialize",
	"export",
}

// String returns the stable wire name of the stage.
func (s Stage) String() string {
	if s < 0 || int(s) >= numStages {
		return "unknown"
	}
	return stageNames[s]
}

// Next returns the following stage, or false from the last stage.
func (s Stage) Next() (Stage, bool) {
	if int(s)+1 >= numStages {
		return s, false
	}
	return s + 1, true
}

// Stages returns every stage in pipeline order.
func Stages() []Stage {
	out := make([]Stage, numStages)
	for i := range out {
		out[i] = Stage(i)
	}
	return out
}

// stageSpec declares, for one stage, the precondition over PipelineState
// that gates its transition and the state fields it owns. Owned fields are
// the ones cleared when the stage is invalidated.
type stageSpec struct {
	owns         []Topic
	precondition func(s *PipelineState) error
}

// registry is the static stage registry. It is pure data: the transition
// controller consults preconditions, the invalidation routine consults
// owned fields.
var registry = [numStages]stageSpec{
	StageSportSelect: {
		owns: []Topic{TopicAvailableParams},
		precondition: func(s *PipelineState) error {
			if _, ok := s.SelectedSport(); !ok {
				return ErrNoSelection
			}
			return nil
		},
	},
	StageFilterSelect: {
		owns: []Topic{TopicSelectedParamRows, TopicLoader, TopicAvailableOddsTypes},
		precondition: func(s *PipelineState) error {
			if _, ok := s.AvailableParams(); !ok {
				return ErrNoSelection
			}
			return nil
		},
	},
	StageExtractionConfig: {
		owns: []Topic{TopicOddsType, TopicDropNaThreshold},
		precondition: func(s *PipelineState) error {
			if _, ok := s.Loader(); !ok {
				return ErrNoSelection
			}
			return nil
		},
	},
	StageDataMaterialize: {
		owns: []Topic{TopicTrainTables, TopicFixtureTables},
		precondition: func(s *PipelineState) error {
			if _, ok := s.Loader(); !ok {
				return ErrNoSelection
			}
			return nil
		},
	},
	StageExport: {
		// The export action reads the loader but owns no state of its own;
		// repeating it must not mutate the pipeline.
		owns: nil,
		precondition: func(s *PipelineState) error {
			if _, ok := s.TrainTables(); !ok {
				return ErrNoSelection
			}
			return nil
		},
	},
}

// OwnedTopics returns the state topics owned by the stage.
func (s Stage) OwnedTopics() []Topic {
	if s < 0 || int(s) >= numStages {
		return nil
	}
	return registry[s].owns
}

// CheckPrecondition reports whether the stage's transition may run against
// the given state.
func (s Stage) CheckPrecondition(state *PipelineState) error {
	if s < 0 || int(s) >= numStages {
		return ErrNoSelection
	}
	return registry[s].precondition(state)
}
