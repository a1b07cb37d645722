// Package api exposes the scheduling facade over HTTP: JSON CRUD plus
// Server-Sent-Events streams for the two subscriptions. Principals are
// resolved from bearer tokens; operations without one fail with 401 via the
// facade's AuthRequiredError.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"agendad/internal/auth"
	"agendad/internal/domain"
	"agendad/internal/facade"
	"agendad/internal/quickadd"
)

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

// Scheduler is the facade surface the handler consumes.
type Scheduler interface {
	AddEvent(ctx context.Context, p *auth.Principal, in facade.AddEventInput) (domain.Event, error)
	UpdateEvent(ctx context.Context, p *auth.Principal, id uuid.UUID, patch domain.EventPatch) error
	RemoveEvent(ctx context.Context, p *auth.Principal, id uuid.UUID) error
	ListUpcoming(ctx context.Context, p *auth.Principal, max int) ([]domain.Event, error)
	SubscribeUpcoming(ctx context.Context, p *auth.Principal, sub facade.UpcomingSubscription) (func(), error)
	SubscribeForDay(ctx context.Context, p *auth.Principal, sub facade.DaySubscription) (func(), error)
}

// QuickAddParser converts free text into a scheduling intent.
type QuickAddParser interface {
	Parse(text string, now time.Time) (quickadd.Intent, error)
}

// PrincipalResolver extracts the caller principal from a request.
// (nil, nil) means no credentials were presented.
type PrincipalResolver interface {
	FromRequest(r *http.Request) (*auth.Principal, error)
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	scheduler Scheduler
	quickAdd  QuickAddParser
	resolver  PrincipalResolver
	clock     func() time.Time
	db        HealthChecker
}

func NewHandler(scheduler Scheduler, quickAdd QuickAddParser, resolver PrincipalResolver) *Handler {
	return &Handler{
		scheduler: scheduler,
		quickAdd:  quickAdd,
		resolver:  resolver,
		clock:     time.Now,
	}
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/events" && r.Method == http.MethodPost:
		h.createEvent(w, r)

	case path == "/events/quickadd" && r.Method == http.MethodPost:
		h.quickAddEvent(w, r)

	case path == "/events/upcoming" && r.Method == http.MethodGet:
		h.listUpcoming(w, r)

	case path == "/events/upcoming/watch" && r.Method == http.MethodGet:
		h.watchUpcoming(w, r)

	case path == "/events/day/watch" && r.Method == http.MethodGet:
		h.watchDay(w, r)

	case strings.HasPrefix(path, "/events/") && r.Method == http.MethodPatch:
		h.updateEvent(w, r)

	case strings.HasPrefix(path, "/events/") && r.Method == http.MethodDelete:
		h.deleteEvent(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// principal resolves the caller, writing a 401 when credentials are present
// but invalid. A nil principal with ok=true means anonymous; the facade
// rejects it per-operation.
func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	p, err := h.resolver.FromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return nil, false
	}
	return p, true
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req CreateEventRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := validateCreateEvent(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	endAt := req.EndAt
	if endAt.IsZero() {
		endAt = req.StartAt.Add(time.Hour)
	}

	ev, err := h.scheduler.AddEvent(r.Context(), p, facade.AddEventInput{
		Title:          req.Title,
		Description:    req.Description,
		Timezone:       req.Timezone,
		RecurrenceRule: req.RecurrenceRule,
		StartAt:        req.StartAt,
		EndAt:          endAt,
		NextRunAt:      req.NextRunAt,
	})
	if err != nil {
		h.writeFacadeError(w, "create event", err)
		return
	}

	writeJSON(w, http.StatusCreated, toEventResponse(ev))
}

func (h *Handler) quickAddEvent(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req QuickAddRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	intent, err := h.quickAdd.Parse(req.Text, h.clock())
	if err != nil {
		var parseErr *quickadd.ParseError
		if errors.As(err, &parseErr) {
			writeError(w, http.StatusUnprocessableEntity, parseErr.Error())
			return
		}
		log.Printf("api: quick add error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to parse text")
		return
	}

	ev, err := h.scheduler.AddEvent(r.Context(), p, facade.AddEventInput{
		Title:          intent.Title,
		Description:    intent.Description,
		Timezone:       intent.Timezone,
		RecurrenceRule: intent.RecurrenceRule,
		StartAt:        intent.StartAt,
		EndAt:          intent.EndAt,
		NextRunAt:      &intent.NextRunAt,
	})
	if err != nil {
		h.writeFacadeError(w, "quick add event", err)
		return
	}

	writeJSON(w, http.StatusCreated, toEventResponse(ev))
}

func (h *Handler) listUpcoming(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.scheduler.ListUpcoming(r.Context(), p, limit)
	if err != nil {
		h.writeFacadeError(w, "list upcoming", err)
		return
	}

	writeJSON(w, http.StatusOK, ListEventsResponse{Events: toEventResponses(events)})
}

func (h *Handler) updateEvent(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	id, ok := eventIDFromPath(w, r)
	if !ok {
		return
	}

	var req UpdateEventRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := validateUpdateEvent(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	patch := domain.EventPatch{
		Title:          req.Title,
		Description:    req.Description,
		Timezone:       req.Timezone,
		RecurrenceRule: req.RecurrenceRule,
		StartAt:        req.StartAt,
		EndAt:          req.EndAt,
		NextRunAt:      req.NextRunAt,
	}
	if req.Status != nil {
		status := domain.EventStatus(*req.Status)
		patch.Status = &status
	}

	if patch.IsZero() {
		writeError(w, http.StatusBadRequest, "patch is empty")
		return
	}

	if err := h.scheduler.UpdateEvent(r.Context(), p, id, patch); err != nil {
		h.writeFacadeError(w, "update event", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteEvent(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	id, ok := eventIDFromPath(w, r)
	if !ok {
		return
	}

	if err := h.scheduler.RemoveEvent(r.Context(), p, id); err != nil {
		h.writeFacadeError(w, "delete event", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeFacadeError maps facade errors to HTTP statuses.
func (h *Handler) writeFacadeError(w http.ResponseWriter, op string, err error) {
	var authErr *facade.AuthRequiredError
	switch {
	case errors.As(err, &authErr):
		writeError(w, http.StatusUnauthorized, authErr.Error())
	case errors.Is(err, facade.ErrInvalidRecurrenceRule):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrEventNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	default:
		log.Printf("api: %s error: %v", op, err)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}

// eventIDFromPath extracts the UUID from /events/{id}.
func eventIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 2 || parts[0] != "events" {
		writeError(w, http.StatusNotFound, "not found")
		return uuid.UUID{}, false
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return uuid.UUID{}, false
	}
	return id, true
}

// decodeBody decodes a size-limited JSON body, writing the error response
// itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// parseLimit extracts and validates the limit query parameter.
// Zero means "use the default"; the facade applies it.
func parseLimit(r *http.Request) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, err
	}
	if limit < 0 {
		return 0, strconv.ErrRange
	}
	if limit > facade.MaxListLimit {
		return 0, &limitExceededError{max: facade.MaxListLimit}
	}
	return limit, nil
}

type limitExceededError struct {
	max int
}

func (e *limitExceededError) Error() string {
	return "limit exceeds maximum of " + strconv.Itoa(e.max)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
