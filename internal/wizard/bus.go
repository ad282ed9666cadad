package wizard

import (
	"sync"
)

// Topic identifies one notification stream: one topic per PipelineState
// field plus one for control enablement.
type Topic string

const (
	TopicSelectedSport      Topic = "selected_sport"
	TopicAvailableParams    Topic = "available_params"
	TopicSelectedParamRows  Topic = "selected_param_rows"
	TopicLoader             Topic = "loader"
	TopicAvailableOddsTypes Topic = "available_odds_types"
	TopicOddsType           Topic = "odds_type"
	TopicDropNaThreshold    Topic = "drop_na_threshold"
	TopicTrainTables        Topic = "train_tables"
	TopicFixtureTables      Topic = "fixture_tables"

	// TopicControls carries control-enablement changes.
	TopicControls Topic = "controls"

	// TopicFetchFailed carries fetch failures so the rendering layer can
	// surface a retry prompt.
	TopicFetchFailed Topic = "fetch_failed"
)

// EventKind distinguishes populate events from invalidation events.
type EventKind string

const (
	EventUpdated EventKind = "updated"
	EventCleared EventKind = "cleared"
)

// Event is one notification delivered to the rendering layer.
type Event struct {
	Topic Topic     `json:"topic"`
	Kind  EventKind `json:"kind"`
	Stage Stage     `json:"-"`
	// StageName is the wire form of Stage.
	StageName string `json:"stage"`
	Value     any    `json:"value,omitempty"`
}

// Handler consumes bus events. Handlers run synchronously on the
// controller's loop and must not block.
type Handler func(Event)

// Bus is the render notification surface: synchronous publish/subscribe
// with in-order, at-least-once delivery per topic. Subscribers are invoked
// in subscription order.
type Bus struct {
	mu   sync.RWMutex
	subs map[Topic][]Handler
	all  []Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]Handler)}
}

// Subscribe registers a handler for one topic.
func (b *Bus) Subscribe(topic Topic, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], h)
}

// SubscribeAll registers a handler for every topic. Wildcard handlers run
// after the topic's own handlers.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish delivers the event to the topic's subscribers, then to wildcard
// subscribers, synchronously and in subscription order.
func (b *Bus) Publish(e Event) {
	e.StageName = e.Stage.String()
	b.mu.RLock()
	topicSubs := b.subs[e.Topic]
	allSubs := b.all
	b.mu.RUnlock()
	for _, h := range topicSubs {
		h(e)
	}
	for _, h := range allSubs {
		h(e)
	}
}
