// Package changefeed broadcasts committed store mutations to subscribers.
//
// Publishing never blocks: a subscriber whose buffer is full misses that
// change (and the drop is counted). Subscribers that re-query the store on
// every notification tolerate misses, since the next change triggers a fresh
// snapshot anyway.
package changefeed

import (
	"log"
	"sync"

	"agendad/internal/domain"
)

// MetricsSink records feed behavior. Implementations must not block.
type MetricsSink interface {
	SubscriberDropped()
	SubscriberCountUpdate(count int)
}

type Option func(*Feed)

// WithMetrics attaches a metrics sink to the feed.
func WithMetrics(sink MetricsSink) Option {
	return func(f *Feed) {
		f.metrics = sink
	}
}

// Feed is a fan-out hub for domain.Change records.
type Feed struct {
	mu      sync.Mutex
	subs    map[int]chan domain.Change
	nextID  int
	buffer  int
	metrics MetricsSink
}

func New(buffer int, opts ...Option) *Feed {
	f := &Feed{
		subs:   make(map[int]chan domain.Change),
		buffer: buffer,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Publish delivers change to every subscriber without blocking.
func (f *Feed) Publish(change domain.Change) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, ch := range f.subs {
		select {
		case ch <- change:
		default:
			log.Printf("changefeed: subscriber %d buffer full, dropping change (event=%s)", id, change.Event.ID)
			if f.metrics != nil {
				f.metrics.SubscriberDropped()
			}
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel func removes the
// subscription and closes the channel; it is idempotent.
func (f *Feed) Subscribe() (<-chan domain.Change, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++

	ch := make(chan domain.Change, f.buffer)
	f.subs[id] = ch
	f.reportCount()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs, id)
			close(ch)
			f.reportCount()
		})
	}
	return ch, cancel
}

// reportCount pushes the subscriber count to the metrics sink. Callers hold f.mu.
func (f *Feed) reportCount() {
	if f.metrics != nil {
		f.metrics.SubscriberCountUpdate(len(f.subs))
	}
}

// SubscriberCount returns the number of active subscribers.
func (f *Feed) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
