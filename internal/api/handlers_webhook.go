package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/farhan/hookgate/internal/event"
	"github.com/farhan/hookgate/internal/metrics"
	"github.com/farhan/hookgate/internal/models"
	"github.com/farhan/hookgate/internal/signing"
	"github.com/farhan/hookgate/internal/storage"
)

const maxBodySize = 256 * 1024 // 256KB

// WebhookHandler runs the per-request pipeline:
// receive → validate headers → verify signature → decode → route → respond.
type WebhookHandler struct {
	verifier *signing.Verifier
	events   *event.Router
	store    storage.Storage
	log      zerolog.Logger
}

func NewWebhookHandler(verifier *signing.Verifier, events *event.Router, store storage.Storage, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier: verifier,
		events:   events,
		store:    store,
		log:      log,
	}
}

// Receive handles POST. The sender retries on any non-2xx, so every branch
// below is explicit about which side of that line it lands on.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to read request body")
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	sig := r.Header.Get(signing.HeaderSignature)
	ts := r.Header.Get(signing.HeaderTimestamp)
	if !h.verifier.Verify(sig, ts, body) {
		metrics.SignatureFailures.Inc()
		h.log.Warn().Str("remote", r.RemoteAddr).Msg("invalid request signature")
		writeError(w, http.StatusUnauthorized, "invalid request signature")
		return
	}

	evt, err := event.Decode(body)
	if err != nil {
		h.log.Warn().Err(err).Msg("undecodable webhook payload")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if evt.Ping() {
		h.log.Debug().Msg("ping acknowledged")
		writeNoContent(w)
		return
	}

	metrics.EventsTotal.WithLabelValues(evt.EventType).Inc()

	if err := h.events.Route(r.Context(), evt); err != nil {
		h.log.Error().Err(err).Str("event_type", evt.EventType).Msg("event handler failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.recordEvent(r.Context(), evt)

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// recordEvent appends to the audit log. Best-effort: the response contract
// does not depend on it.
func (h *WebhookHandler) recordEvent(ctx context.Context, evt *event.Event) {
	if h.store == nil {
		return
	}

	outcome := storage.OutcomeIgnored
	if h.events.Known(evt.EventType) {
		outcome = storage.OutcomeRouted
	}

	rec := &storage.EventRecord{
		ID:        models.NewID("evt"),
		EventType: evt.EventType,
		Outcome:   outcome,
		CreatedAt: time.Now().UTC(),
	}
	if user, ok := evt.User(); ok {
		rec.ExternalID = user.ID
		rec.DisplayName = user.Username
	}

	if err := h.store.RecordEvent(ctx, rec); err != nil && !errors.Is(err, context.Canceled) {
		h.log.Error().Err(err).Str("event_type", evt.EventType).Msg("failed to record event")
	}
}

// Liveness handles GET: a static plaintext payload for reachability probes.
func (h *WebhookHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "hookgate is running\n")
}

// Preflight handles OPTIONS with permissive CORS. The real caller is a
// platform backend, not a browser, but intermediary proxies probe with
// OPTIONS and a 405 confuses them.
func (h *WebhookHandler) Preflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+signing.HeaderSignature+", "+signing.HeaderTimestamp)
	w.WriteHeader(http.StatusNoContent)
}
