package wizard_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sportsbet/internal/dataloader"
	"sportsbet/internal/wizard"
)

const waitTimeout = 2 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubLoader is the minimal loader used where only presence matters.
type stubLoader struct{}

func (stubLoader) OddsTypes(context.Context) ([]string, error) { return nil, nil }
func (stubLoader) ExtractTrainData(context.Context, *string, float64) (*dataloader.TrainData, error) {
	return &dataloader.TrainData{}, nil
}
func (stubLoader) ExtractFixturesData(context.Context) (*dataloader.FixturesData, error) {
	return &dataloader.FixturesData{}, nil
}
func (stubLoader) Serialize() ([]byte, error) { return []byte("{}"), nil }

// fakeLoader records extraction arguments and serves scripted results.
type fakeLoader struct {
	mu          sync.Mutex
	oddsTypes   []string
	oddsErr     error
	trainErr    error
	serialized  []byte
	gotOddsType *string
	gotThres    float64
	oddsSet     bool
}

func (l *fakeLoader) OddsTypes(context.Context) ([]string, error) {
	return l.oddsTypes, l.oddsErr
}

func (l *fakeLoader) ExtractTrainData(_ context.Context, oddsType *string, thres float64) (*dataloader.TrainData, error) {
	l.mu.Lock()
	l.gotOddsType = oddsType
	l.gotThres = thres
	l.oddsSet = true
	l.mu.Unlock()
	if l.trainErr != nil {
		return nil, l.trainErr
	}
	data := &dataloader.TrainData{
		Features: &dataloader.Table{Columns: []string{"league"}, Rows: [][]any{{"E0"}}},
		Targets:  &dataloader.Table{Columns: []string{"FTR"}, Rows: [][]any{{"H"}}},
	}
	if oddsType != nil {
		data.Odds = &dataloader.Table{Columns: []string{"AvgH"}, Rows: [][]any{{1.5}}}
	}
	return data, nil
}

func (l *fakeLoader) ExtractFixturesData(context.Context) (*dataloader.FixturesData, error) {
	return &dataloader.FixturesData{
		Features: &dataloader.Table{Columns: []string{"league"}, Rows: [][]any{{"E0"}}},
	}, nil
}

func (l *fakeLoader) Serialize() ([]byte, error) {
	if l.serialized != nil {
		return l.serialized, nil
	}
	return []byte(`{"sport":"Soccer"}`), nil
}

func (l *fakeLoader) extractedOddsType() (*string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gotOddsType, l.oddsSet
}

// fakeProvider serves a scripted parameter space and loader. An optional
// gate holds AllParams open so tests can observe pending fetches.
type fakeProvider struct {
	mu          sync.Mutex
	params      []dataloader.ParamRecord
	paramsErr   error
	paramsCalls int
	gate        chan struct{}
	loader      *fakeLoader
	loaderErr   error
	loaderCalls int
	gotGrid     dataloader.ParamGrid
}

func newFakeProvider(params ...dataloader.ParamRecord) *fakeProvider {
	return &fakeProvider{params: params, loader: &fakeLoader{oddsTypes: []string{"market_average", "market_maximum"}}}
}

func (p *fakeProvider) AllParams(ctx context.Context, sport string) ([]dataloader.ParamRecord, error) {
	p.mu.Lock()
	p.paramsCalls++
	gate := p.gate
	p.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.params, p.paramsErr
}

func (p *fakeProvider) NewLoader(sport string, grid dataloader.ParamGrid) (dataloader.Loader, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaderCalls++
	p.gotGrid = grid
	if p.loaderErr != nil {
		return nil, p.loaderErr
	}
	return p.loader, nil
}

func (p *fakeProvider) calls() (params, loaders int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paramsCalls, p.loaderCalls
}

// recorder captures bus events for assertion and wakeup.
type recorder struct {
	mu     sync.Mutex
	events []wizard.Event
	signal chan wizard.Event
}

func newRecorder() *recorder {
	return &recorder{signal: make(chan wizard.Event, 128)}
}

func (r *recorder) handle(e wizard.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	select {
	case r.signal <- e:
	default:
	}
}

// wait blocks until an event for the topic and kind arrives, including
// events recorded before the call.
func (r *recorder) wait(t *testing.T, topic wizard.Topic, kind wizard.EventKind) wizard.Event {
	t.Helper()
	deadline := time.After(waitTimeout)
	seen := 0
	for {
		r.mu.Lock()
		for ; seen < len(r.events); seen++ {
			if r.events[seen].Topic == topic && r.events[seen].Kind == kind {
				e := r.events[seen]
				r.mu.Unlock()
				return e
			}
		}
		r.mu.Unlock()
		select {
		case <-r.signal:
		case <-deadline:
			t.Fatalf("timed out waiting for %s/%s event", topic, kind)
		}
	}
}

func (r *recorder) count(topic wizard.Topic, kind wizard.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Topic == topic && e.Kind == kind {
			n++
		}
	}
	return n
}

func startController(t *testing.T, provider dataloader.Provider) (*wizard.Controller, *recorder) {
	t.Helper()
	bus := wizard.NewBus()
	rec := newRecorder()
	bus.SubscribeAll(rec.handle)
	c := wizard.NewController(provider, bus, 2, discardLogger())
	c.Start(context.Background())
	t.Cleanup(c.Stop)
	return c, rec
}

// walkToExtraction drives a controller through sport and filter selection.
func walkToExtraction(t *testing.T, c *wizard.Controller, rec *recorder) {
	t.Helper()
	require.NoError(t, c.SelectSport(dataloader.SportSoccer))
	require.NoError(t, c.Advance())
	rec.wait(t, wizard.TopicAvailableParams, wizard.EventUpdated)

	require.NoError(t, c.ConfirmFilterSelection([]int{1}))
	require.NoError(t, c.Advance())
	rec.wait(t, wizard.TopicAvailableOddsTypes, wizard.EventUpdated)
}
