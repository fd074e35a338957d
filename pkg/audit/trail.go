// Package audit provides the engine's append-only notification stream.
// Every successful mutation emits an ordered event record, logged in
// structured JSON for SIEM consumption and fanned out to subscribers with
// at-least-once delivery.
package audit

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veilshare-inc/veilshare-engine/pkg/models"
)

// Subscriber receives each recorded event. Subscribers are invoked
// synchronously in sequence order; a slow subscriber delays the writer, which
// is acceptable because mutations are short and serialized anyway.
type Subscriber func(models.Event)

// Trail records engine events. It assigns the per-process sequence number,
// keeps the full in-order record list, and notifies subscribers.
type Trail struct {
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	seq    uint64
	events []models.Event
	subs   []Subscriber
}

// NewTrail creates a trail logging under a dedicated "audit" namespace.
func NewTrail(logger *zap.Logger) *Trail {
	return &Trail{
		logger: logger.Named("audit"),
		now:    time.Now,
	}
}

// WithClock overrides the trail's clock. Test use.
func (t *Trail) WithClock(now func() time.Time) *Trail {
	t.now = now
	return t
}

// Subscribe registers fn for every event recorded after this call.
func (t *Trail) Subscribe(fn Subscriber) {
	t.mu.Lock()
	t.subs = append(t.subs, fn)
	t.mu.Unlock()
}

// Record appends an event of the given type, assigning its sequence number
// and timestamp, and delivers it to all subscribers before returning.
func (t *Trail) Record(eventType models.EventType, subject string, details map[string]string) models.Event {
	t.mu.Lock()
	t.seq++
	event := models.Event{
		Seq:       t.seq,
		Timestamp: t.now().UTC(),
		Type:      eventType,
		Subject:   subject,
		Details:   details,
	}
	t.events = append(t.events, event)
	subs := make([]Subscriber, len(t.subs))
	copy(subs, t.subs)
	t.mu.Unlock()

	// Marshaling known types should never fail
	eventJSON, _ := json.Marshal(event)
	t.logger.Info("engine event",
		zap.Uint64("seq", event.Seq),
		zap.String("event_type", string(eventType)),
		zap.String("subject", subject),
		zap.String("event_json", string(eventJSON)),
	)

	for _, fn := range subs {
		fn(event)
	}
	return event
}

// Events returns a snapshot of all recorded events in sequence order.
func (t *Trail) Events() []models.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.Event, len(t.events))
	copy(out, t.events)
	return out
}
