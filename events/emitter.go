package events

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// EventType labels what happened.
type EventType string

const (
	EventTxExecuted        EventType = "tx_executed"
	EventTokenTransfer     EventType = "token_transfer"
	EventTournamentCreated EventType = "tournament_created"
	EventPlayerRegistered  EventType = "player_registered"
	EventTournamentStatus  EventType = "tournament_status"
	EventMatchReported     EventType = "match_reported"
	EventRoundAdvanced     EventType = "round_advanced"
	EventTournamentEnded   EventType = "tournament_ended"
	EventRewardClaimed     EventType = "reward_claimed"
)

// Event carries a typed payload emitted after a state change. Seq is the
// executor sequence number of the transaction that caused it.
type Event struct {
	Type EventType      `json:"type"`
	TxID string         `json:"tx_id"`
	Seq  uint64         `json:"seq"`
	Data map[string]any `json:"data"`
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	all      []Handler
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// SubscribeAll registers h for every event type.
func (e *Emitter) SubscribeAll(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, h)
}

// Emit delivers ev to all subscribers for ev.Type synchronously.
// Each handler is guarded by panic recovery so a misbehaving subscriber
// cannot take down the executor.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := make([]Handler, 0, len(e.handlers[ev.Type])+len(e.all))
	handlers = append(handlers, e.handlers[ev.Type]...)
	handlers = append(handlers, e.all...)
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithFields(logrus.Fields{
						"event": ev.Type,
						"tx":    ev.TxID,
					}).Errorf("event handler panicked: %v", r)
				}
			}()
			h(ev)
		}()
	}
}
