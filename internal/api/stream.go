package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"agendad/internal/domain"
	"agendad/internal/facade"
)

// streamBufferSize bounds the per-connection queue of pending snapshots.
// When the client lags behind, older snapshots are superseded rather than
// queued: only the newest state matters to a watcher.
const streamBufferSize = 4

// watchUpcoming streams the upcoming-events snapshot as Server-Sent Events,
// re-sent whenever the underlying data changes.
func (h *Handler) watchUpcoming(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stream, ok := newEventStream(w)
	if !ok {
		return
	}

	unsubscribe, err := h.scheduler.SubscribeUpcoming(r.Context(), p, facade.UpcomingSubscription{
		Max:     limit,
		OnData:  stream.onData,
		OnError: stream.onError,
	})
	if err != nil {
		h.writeFacadeError(w, "watch upcoming", err)
		return
	}
	defer unsubscribe()

	stream.run(r)
}

// watchDay streams the caller's events within [start, end) as Server-Sent
// Events. Both bounds are required, RFC 3339.
func (h *Handler) watchDay(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	dayStart, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be RFC 3339")
		return
	}
	dayEnd, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be RFC 3339")
		return
	}

	stream, ok := newEventStream(w)
	if !ok {
		return
	}

	unsubscribe, err := h.scheduler.SubscribeForDay(r.Context(), p, facade.DaySubscription{
		DayStart: dayStart,
		DayEnd:   dayEnd,
		OnData:   stream.onData,
		OnError:  stream.onError,
	})
	if err != nil {
		h.writeFacadeError(w, "watch day", err)
		return
	}
	defer unsubscribe()

	stream.run(r)
}

type streamMessage struct {
	events []domain.Event
	err    error
}

// eventStream bridges facade subscription callbacks onto an SSE connection.
// Callbacks run on the subscription goroutine; run drains them on the
// request goroutine so only one writer touches the ResponseWriter.
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	msgs    chan streamMessage
}

func newEventStream(w http.ResponseWriter) (*eventStream, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return nil, false
	}

	return &eventStream{
		w:       w,
		flusher: flusher,
		msgs:    make(chan streamMessage, streamBufferSize),
	}, true
}

func (s *eventStream) onData(events []domain.Event) {
	s.send(streamMessage{events: events})
}

func (s *eventStream) onError(err error) {
	s.send(streamMessage{err: err})
}

// send enqueues a message, dropping the oldest pending one when the buffer
// is full so the subscription goroutine never blocks on a slow client.
func (s *eventStream) send(msg streamMessage) {
	for {
		select {
		case s.msgs <- msg:
			return
		default:
			select {
			case <-s.msgs:
			default:
			}
		}
	}
}

func (s *eventStream) run(r *http.Request) {
	s.w.Header().Set("Content-Type", "text/event-stream")
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("Connection", "keep-alive")
	s.w.WriteHeader(http.StatusOK)
	s.flusher.Flush()

	// Periodic comments keep intermediaries from timing out idle streams.
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-keepalive.C:
			if _, err := s.w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			s.flusher.Flush()

		case msg := <-s.msgs:
			if msg.err != nil {
				if !s.writeSSE("error", ErrorResponse{Error: msg.err.Error()}) {
					return
				}
				continue
			}
			if !s.writeSSE("events", ListEventsResponse{Events: toEventResponses(msg.events)}) {
				return
			}
		}
	}
}

func (s *eventStream) writeSSE(event string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("api: sse marshal error: %v", err)
		return true
	}

	payload := "event: " + event + "\n" +
		"data: " + string(data) + "\n\n"
	if _, err := s.w.Write([]byte(payload)); err != nil {
		return false
	}
	s.flusher.Flush()
	return true
}
