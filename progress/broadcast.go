// Package progress runs conversions as tasks: it mints ids, broadcasts
// checkpoint events to every listener and threads cooperative cancellation
// through the dispatcher.
package progress

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/domain"
)

// DefaultListenerBuffer is the per-listener channel capacity.
const DefaultListenerBuffer = 64

// Broadcaster fans progress events out to all subscribed listeners.
// Listeners filter by conversion id themselves. A listener that falls
// behind loses events rather than stalling the pipeline.
type Broadcaster struct {
	mu        sync.Mutex
	listeners map[int]chan domain.ProgressEvent
	nextID    int
	last      map[string]domain.ProgressEvent
	buffer    int
	closed    bool
	log       zerolog.Logger
}

// NewBroadcaster returns an empty Broadcaster. buffer <= 0 selects
// DefaultListenerBuffer.
func NewBroadcaster(buffer int, log zerolog.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultListenerBuffer
	}
	return &Broadcaster{
		listeners: make(map[int]chan domain.ProgressEvent),
		last:      make(map[string]domain.ProgressEvent),
		buffer:    buffer,
		log:       log.With().Str("component", "progress").Logger(),
	}
}

// Subscribe registers a listener. The channel is closed by Unsubscribe or
// Close.
func (b *Broadcaster) Subscribe() (int, <-chan domain.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan domain.ProgressEvent, b.buffer)
	if b.closed {
		close(ch)
		return -1, ch
	}
	b.nextID++
	b.listeners[b.nextID] = ch
	return b.nextID, ch
}

// Unsubscribe removes a listener. Unknown ids are ignored.
func (b *Broadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.listeners[id]; ok {
		delete(b.listeners, id)
		close(ch)
	}
}

// Publish delivers evt to every listener and returns the event as sent.
// Percentages never go backwards for a conversion id: a lower value is
// raised to the last one published.
func (b *Broadcaster) Publish(evt domain.ProgressEvent) domain.ProgressEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.last[evt.ConversionID]; ok && evt.Percent < prev.Percent {
		evt.Percent = prev.Percent
	}
	b.last[evt.ConversionID] = evt
	if b.closed {
		return evt
	}
	for id, ch := range b.listeners {
		select {
		case ch <- evt:
		default:
			b.log.Debug().Int("listener", id).Str("conversion_id", evt.ConversionID).Msg("listener full, event dropped")
		}
	}
	return evt
}

// Last returns the most recent event published for a conversion id.
func (b *Broadcaster) Last(conversionID string) (domain.ProgressEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	evt, ok := b.last[conversionID]
	return evt, ok
}

// Forget drops the retained event of a conversion id.
func (b *Broadcaster) Forget(conversionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.last, conversionID)
}

// Listeners returns the number of subscribed listeners.
func (b *Broadcaster) Listeners() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// Close closes every listener channel. Later Publish calls only update the
// retained events.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.listeners {
		delete(b.listeners, id)
		close(ch)
	}
}
