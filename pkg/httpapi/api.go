package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/notifycore/pkg/inbox"
	"github.com/dmitrymomot/notifycore/pkg/logger"
	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/orchestrator"
	"github.com/dmitrymomot/notifycore/pkg/provider"
)

// Notifier is the orchestrator surface served over HTTP.
type Notifier interface {
	Send(ctx context.Context, req notify.Request) (bool, error)
	SendMulticast(ctx context.Context, userIDs []int64, req notify.Request) (*orchestrator.MulticastReport, error)
	GetDeliveryStatus(ctx context.Context, userID int64, count int) (orchestrator.DeliveryStatus, error)
	GetHistory(ctx context.Context, userID int64, count int) ([]inbox.Record, error)
	GetUndelivered(ctx context.Context, userID int64) ([]inbox.Record, error)
	ReplayMissed(ctx context.Context, userID int64) (orchestrator.ReplayResult, error)
	GetStats() orchestrator.Stats
	IsHealthy(ctx context.Context) bool
	GetHealthReport(ctx context.Context) orchestrator.HealthReport
	RefreshSystem(ctx context.Context) (int, error)
}

// Queue is the queue surface the API needs.
type Queue interface {
	Pending(ctx context.Context, userID int64) ([]*notify.QueuedNotification, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	MarkUserOnline(ctx context.Context, userID int64, channel string) (int, error)
	MarkUserOffline(ctx context.Context, userID int64) error
	// Touch keeps a streaming user online between heartbeats.
	Touch(ctx context.Context, userID int64, channel string) (int, error)
}

// Streams hands out live subscriptions. provider.Hub implements it.
type Streams interface {
	Subscribe(ctx context.Context, userID int64) (*provider.Subscription, error)
	Connections(userID int64) int
}

// API serves operator endpoints and the event stream of the socket provider.
type API struct {
	notifier Notifier
	queue    Queue
	streams  Streams

	logger        *slog.Logger
	heartbeat     time.Duration
	defaultCount  int
	streamChannel string
}

// Option configures an API.
type Option func(*API)

func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithHeartbeat sets the keep-alive comment interval of event streams.
func WithHeartbeat(d time.Duration) Option {
	return func(a *API) {
		if d > 0 {
			a.heartbeat = d
		}
	}
}

// WithDefaultCount sets how many entries list endpoints return when the
// request has no count parameter.
func WithDefaultCount(n int) Option {
	return func(a *API) {
		if n > 0 {
			a.defaultCount = n
		}
	}
}

// New builds the API. streams may be nil, in which case the stream endpoint
// is not mounted.
func New(n Notifier, q Queue, streams Streams, opts ...Option) *API {
	a := &API{
		notifier:      n,
		queue:         q,
		streams:       streams,
		logger:        slog.Default(),
		heartbeat:     25 * time.Second,
		defaultCount:  50,
		streamChannel: "sse",
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(logger.Component("httpapi"))
	return a
}

// Handler returns the routed handler with the middleware stack applied.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(accessLog(a.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.liveness)
	r.Get("/health", a.health)
	r.Get("/stats", a.stats)
	r.Post("/system/refresh", a.refresh)

	r.Route("/notifications", func(r chi.Router) {
		r.Post("/", a.send)
		r.Post("/multicast", a.multicast)
	})
	r.Delete("/queue/{id}", a.cancel)

	r.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/history", a.history)
		r.Get("/undelivered", a.undelivered)
		r.Get("/pending", a.pending)
		r.Get("/status", a.status)
		r.Post("/replay", a.replay)
		if a.streams != nil {
			r.Get("/stream", a.stream)
		}
	})
	return r
}

func (a *API) liveness(w http.ResponseWriter, r *http.Request) {
	if !a.notifier.IsHealthy(r.Context()) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("NOT_READY"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("READY"))
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	report := a.notifier.GetHealthReport(r.Context())
	status := http.StatusOK
	if report.State == orchestrator.StateUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, Response{Data: report})
}

func (a *API) stats(w http.ResponseWriter, _ *http.Request) {
	a.ok(w, a.notifier.GetStats())
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	n, err := a.notifier.RefreshSystem(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, map[string]int{"processed": n})
}

func (a *API) send(w http.ResponseWriter, r *http.Request) {
	var req notify.Request
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	accepted, err := a.notifier.Send(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, Response{Data: map[string]bool{"accepted": accepted}})
}

type multicastBody struct {
	UserIDs []int64 `json:"user_ids"`
	notify.Request
}

func (a *API) multicast(w http.ResponseWriter, r *http.Request) {
	var body multicastBody
	if err := decode(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	report, err := a.notifier.SendMulticast(r.Context(), body.UserIDs, body.Request)
	if report != nil && (err == nil || errors.Is(err, notify.ErrNotDelivered)) {
		// Partial failures are reported per user in the body.
		writeJSON(w, http.StatusAccepted, Response{Data: newMulticastView(report)})
		return
	}
	a.fail(w, r, err)
}

type multicastView struct {
	Delivered []int64          `json:"delivered"`
	Emailed   []int64          `json:"emailed"`
	Queued    []int64          `json:"queued"`
	Rejected  map[int64]string `json:"rejected,omitempty"`
	Failed    map[int64]string `json:"failed,omitempty"`
	Provider  string           `json:"provider,omitempty"`
}

func newMulticastView(r *orchestrator.MulticastReport) multicastView {
	v := multicastView{
		Delivered: nonNil(r.Delivered),
		Emailed:   nonNil(r.Emailed),
		Queued:    nonNil(r.Queued),
		Provider:  r.Provider,
	}
	if len(r.Rejected) > 0 {
		v.Rejected = make(map[int64]string, len(r.Rejected))
		for id, err := range r.Rejected {
			v.Rejected[id] = err.Error()
		}
	}
	if len(r.Failed) > 0 {
		v.Failed = make(map[int64]string, len(r.Failed))
		for id, err := range r.Failed {
			v.Failed[id] = err.Error()
		}
	}
	return v
}

func (a *API) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, fmt.Errorf("%w: %w", ErrInvalidBody, err))
		return
	}
	if err := a.queue.Cancel(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) history(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	recs, err := a.notifier.GetHistory(r.Context(), userID, a.count(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, nonNil(recs))
}

func (a *API) undelivered(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	recs, err := a.notifier.GetUndelivered(r.Context(), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, nonNil(recs))
}

func (a *API) pending(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items, err := a.queue.Pending(r.Context(), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, nonNil(items))
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	st, err := a.notifier.GetDeliveryStatus(r.Context(), userID, a.count(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, st)
}

func (a *API) replay(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.notifier.ReplayMissed(r.Context(), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, res)
}

func (a *API) count(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || n <= 0 {
		return a.defaultCount
	}
	return n
}

func userIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidUserID
	}
	return id, nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
