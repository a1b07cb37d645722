package facade

import (
	"context"
	"fmt"
	"time"

	"agendad/internal/auth"
	"agendad/internal/domain"
)

// UpcomingSubscription configures SubscribeUpcoming.
type UpcomingSubscription struct {
	OnData  func([]domain.Event)
	OnError func(error)

	// Max bounds each pushed snapshot, with the same default/clamp rules
	// as ListUpcoming.
	Max int
}

// DaySubscription configures SubscribeForDay. The stream covers the
// principal's own events with startAt in [DayStart, DayEnd), ordered by
// startAt.
type DaySubscription struct {
	DayStart time.Time
	DayEnd   time.Time
	OnData   func([]domain.Event)
	OnError  func(error)
}

// SubscribeUpcoming pushes an ordered-by-nextRunAt snapshot immediately and
// again after every committed store change, until the returned unsubscribe
// func is called or ctx is cancelled.
func (f *Facade) SubscribeUpcoming(ctx context.Context, p *auth.Principal, sub UpcomingSubscription) (func(), error) {
	if p == nil {
		return nil, &AuthRequiredError{Op: "subscribeUpcoming"}
	}
	if sub.OnData == nil {
		return nil, fmt.Errorf("subscribeUpcoming: OnData is required")
	}

	limit := clampLimit(sub.Max)
	query := func(ctx context.Context) ([]domain.Event, error) {
		return f.store.UpcomingEvents(ctx, limit)
	}
	relevant := func(domain.Change) bool { return true }

	return f.watch(ctx, query, relevant, sub.OnData, sub.OnError), nil
}

// SubscribeForDay pushes the principal's events for one day window, ordered
// by startAt, re-queried on every change to the principal's events.
func (f *Facade) SubscribeForDay(ctx context.Context, p *auth.Principal, sub DaySubscription) (func(), error) {
	if p == nil {
		return nil, &AuthRequiredError{Op: "subscribeForDay"}
	}
	if sub.OnData == nil {
		return nil, fmt.Errorf("subscribeForDay: OnData is required")
	}
	if !sub.DayEnd.After(sub.DayStart) {
		return nil, fmt.Errorf("subscribeForDay: dayEnd must be after dayStart")
	}

	owner := p.Subject
	query := func(ctx context.Context) ([]domain.Event, error) {
		return f.store.EventsForDay(ctx, owner, sub.DayStart, sub.DayEnd)
	}
	relevant := func(c domain.Change) bool {
		return c.Event.CreatedBy == owner
	}

	return f.watch(ctx, query, relevant, sub.OnData, sub.OnError), nil
}

// watch runs the snapshot/re-query loop in a goroutine and returns the
// unsubscribe func. Query failures go to onError and the stream stays live.
func (f *Facade) watch(
	ctx context.Context,
	query func(context.Context) ([]domain.Event, error),
	relevant func(domain.Change) bool,
	onData func([]domain.Event),
	onError func(error),
) func() {
	changes, cancelFeed := f.feed.Subscribe()
	done := make(chan struct{})

	unsubscribe := func() {
		cancelFeed()
		<-done
	}

	go func() {
		defer close(done)

		push := func() {
			events, err := query(ctx)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				return
			}
			onData(events)
		}

		push()

		for {
			select {
			case <-ctx.Done():
				cancelFeed()
				// Drain until the feed closes the channel.
				for range changes {
				}
				return
			case change, ok := <-changes:
				if !ok {
					return
				}
				if relevant(change) {
					push()
				}
			}
		}
	}()

	return unsubscribe
}
