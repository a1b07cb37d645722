package facade

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"agendad/internal/auth"
	"agendad/internal/domain"
	"agendad/internal/recurrence"
	"agendad/internal/testutil"
)

var facadeNow = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

// mockStore records calls and serves canned events.
type mockStore struct {
	mu sync.Mutex

	inserted  []domain.Event
	updated   map[uuid.UUID]domain.EventPatch
	deleted   []uuid.UUID
	upcoming  []domain.Event
	forDay    []domain.Event
	lastLimit int

	err error
}

func newMockStore() *mockStore {
	return &mockStore{updated: make(map[uuid.UUID]domain.EventPatch)}
}

func (s *mockStore) InsertEvent(ctx context.Context, ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.inserted = append(s.inserted, ev)
	return nil
}

func (s *mockStore) UpdateEvent(ctx context.Context, id uuid.UUID, patch domain.EventPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.updated[id] = patch
	return nil
}

func (s *mockStore) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *mockStore) UpcomingEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLimit = limit
	return s.upcoming, s.err
}

func (s *mockStore) EventsForDay(ctx context.Context, owner string, dayStart, dayEnd time.Time) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forDay, s.err
}

// mockFeed hands out a manually driven change channel.
type mockFeed struct {
	mu        sync.Mutex
	ch        chan domain.Change
	cancelled bool
}

func newMockFeed() *mockFeed {
	return &mockFeed{ch: make(chan domain.Change, 16)}
}

func (f *mockFeed) Subscribe() (<-chan domain.Change, func()) {
	return f.ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.cancelled {
			f.cancelled = true
			close(f.ch)
		}
	}
}

func newTestFacade(store *mockStore) *Facade {
	f := New(store, newMockFeed())
	f.clock = testutil.NewFakeClock(facadeNow).Now
	return f
}

func caller() *auth.Principal {
	return &auth.Principal{Subject: "user-1"}
}

func TestNilPrincipalRejectedEverywhere(t *testing.T) {
	f := newTestFacade(newMockStore())
	ctx := testutil.TestContext(t)
	id := uuid.New()

	var authErr *AuthRequiredError

	if _, err := f.AddEvent(ctx, nil, AddEventInput{Title: "x", StartAt: facadeNow}); !errors.As(err, &authErr) {
		t.Errorf("AddEvent error = %v, want *AuthRequiredError", err)
	}
	if err := f.UpdateEvent(ctx, nil, id, domain.EventPatch{}); !errors.As(err, &authErr) {
		t.Errorf("UpdateEvent error = %v, want *AuthRequiredError", err)
	}
	if err := f.RemoveEvent(ctx, nil, id); !errors.As(err, &authErr) {
		t.Errorf("RemoveEvent error = %v, want *AuthRequiredError", err)
	}
	if _, err := f.ListUpcoming(ctx, nil, 10); !errors.As(err, &authErr) {
		t.Errorf("ListUpcoming error = %v, want *AuthRequiredError", err)
	}
	if _, err := f.SubscribeUpcoming(ctx, nil, UpcomingSubscription{OnData: func([]domain.Event) {}}); !errors.As(err, &authErr) {
		t.Errorf("SubscribeUpcoming error = %v, want *AuthRequiredError", err)
	}
	daySub := DaySubscription{
		DayStart: facadeNow,
		DayEnd:   facadeNow.Add(24 * time.Hour),
		OnData:   func([]domain.Event) {},
	}
	if _, err := f.SubscribeForDay(ctx, nil, daySub); !errors.As(err, &authErr) {
		t.Errorf("SubscribeForDay error = %v, want *AuthRequiredError", err)
	}
}

func TestAddEvent_Defaults(t *testing.T) {
	store := newMockStore()
	f := newTestFacade(store)

	start := facadeNow.Add(time.Hour)
	ev, err := f.AddEvent(testutil.TestContext(t), caller(), AddEventInput{
		Title:   "review",
		StartAt: start,
		EndAt:   start.Add(30 * time.Minute),
	})
	if err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}

	if ev.ID == uuid.Nil {
		t.Error("ID was not assigned")
	}
	if ev.Status != domain.EventStatusScheduled {
		t.Errorf("Status = %q, want scheduled", ev.Status)
	}
	if !ev.NextRunAt.Equal(start) {
		t.Errorf("NextRunAt = %v, want StartAt %v", ev.NextRunAt, start)
	}
	if ev.CreatedBy != "user-1" {
		t.Errorf("CreatedBy = %q, want the principal subject", ev.CreatedBy)
	}
	if !ev.CreatedAt.Equal(facadeNow) || !ev.UpdatedAt.Equal(facadeNow) {
		t.Errorf("audit stamps = %v/%v, want %v", ev.CreatedAt, ev.UpdatedAt, facadeNow)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("inserted %d events, want 1", len(store.inserted))
	}
}

func TestAddEvent_ExplicitNextRunAt(t *testing.T) {
	f := newTestFacade(newMockStore())

	start := facadeNow.Add(time.Hour)
	next := facadeNow.Add(48 * time.Hour)
	ev, err := f.AddEvent(testutil.TestContext(t), caller(), AddEventInput{
		Title:     "shifted",
		StartAt:   start,
		EndAt:     start.Add(time.Hour),
		NextRunAt: &next,
	})
	if err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}
	if !ev.NextRunAt.Equal(next) {
		t.Errorf("NextRunAt = %v, want explicit %v", ev.NextRunAt, next)
	}
}

func TestAddEvent_InvalidRule(t *testing.T) {
	f := newTestFacade(newMockStore())

	_, err := f.AddEvent(testutil.TestContext(t), caller(), AddEventInput{
		Title:          "broken",
		StartAt:        facadeNow,
		EndAt:          facadeNow.Add(time.Hour),
		RecurrenceRule: "FREQ=SOMETIMES",
	})
	if !errors.Is(err, ErrInvalidRecurrenceRule) {
		t.Errorf("error = %v, want ErrInvalidRecurrenceRule", err)
	}
}

func TestAddEvent_ValidRuleAccepted(t *testing.T) {
	f := newTestFacade(newMockStore())

	ev, err := f.AddEvent(testutil.TestContext(t), caller(), AddEventInput{
		Title:          "standup",
		StartAt:        facadeNow,
		EndAt:          facadeNow.Add(time.Hour),
		RecurrenceRule: recurrence.Daily,
	})
	if err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}
	if ev.RecurrenceRule != recurrence.Daily {
		t.Errorf("RecurrenceRule = %q, want %q", ev.RecurrenceRule, recurrence.Daily)
	}
}

func TestListUpcoming_LimitClamping(t *testing.T) {
	cases := []struct {
		max  int
		want int
	}{
		{0, DefaultListLimit},
		{-1, DefaultListLimit},
		{10, 10},
		{MaxListLimit, MaxListLimit},
		{MaxListLimit + 1, MaxListLimit},
	}

	for _, tc := range cases {
		store := newMockStore()
		f := newTestFacade(store)

		if _, err := f.ListUpcoming(testutil.TestContext(t), caller(), tc.max); err != nil {
			t.Fatalf("ListUpcoming(%d) failed: %v", tc.max, err)
		}
		if store.lastLimit != tc.want {
			t.Errorf("ListUpcoming(%d): store limit = %d, want %d", tc.max, store.lastLimit, tc.want)
		}
	}
}

func TestUpdateEvent_PassesPatchThrough(t *testing.T) {
	store := newMockStore()
	f := newTestFacade(store)

	id := uuid.New()
	title := "renamed"
	if err := f.UpdateEvent(testutil.TestContext(t), caller(), id, domain.EventPatch{Title: &title}); err != nil {
		t.Fatalf("UpdateEvent failed: %v", err)
	}

	patch, ok := store.updated[id]
	if !ok {
		t.Fatal("store never saw the update")
	}
	if patch.Title == nil || *patch.Title != "renamed" {
		t.Errorf("patch title = %v, want renamed", patch.Title)
	}
}

func TestRemoveEvent(t *testing.T) {
	store := newMockStore()
	f := newTestFacade(store)

	id := uuid.New()
	if err := f.RemoveEvent(testutil.TestContext(t), caller(), id); err != nil {
		t.Fatalf("RemoveEvent failed: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != id {
		t.Errorf("deleted = %v, want [%s]", store.deleted, id)
	}
}

func TestAddEvent_StoreErrorSurfaces(t *testing.T) {
	store := newMockStore()
	store.err = errors.New("connection refused")
	f := newTestFacade(store)

	_, err := f.AddEvent(testutil.TestContext(t), caller(), AddEventInput{
		Title:   "x",
		StartAt: facadeNow,
		EndAt:   facadeNow.Add(time.Hour),
	})
	if err == nil || !errors.Is(err, store.err) {
		t.Errorf("error = %v, want wrapped store error", err)
	}
}
