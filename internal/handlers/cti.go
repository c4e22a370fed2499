package handlers

import (
	"context"
	"crypto/subtle"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/lucsky/cuid"

	"clinic-console/internal/common/cache"
	"clinic-console/internal/common/errors"
	httputil "clinic-console/internal/common/http"
	"clinic-console/internal/common/logging"
	"clinic-console/internal/common/pagination"
	"clinic-console/internal/common/utils"
	"clinic-console/internal/events"
	"clinic-console/internal/storage"
)

const (
	WebhookSecretHeader = "X-CTI-Secret"

	maxWebhookBody = 64 << 10
)

// patientLookup is cached for unknown callers too, so a burst of calls from a
// new number costs one query
type patientLookup struct {
	Patient *events.PatientInfo `json:"patient"`
}

// WebhookAck is the response to an accepted CTI event
type WebhookAck struct {
	Success bool   `json:"success"`
	EventID string `json:"eventId"`
}

// EventsResponse lists recent events newest first
type EventsResponse struct {
	Events []events.CTIEvent `json:"events"`
	Count  int               `json:"count"`
}

// RequireWebhookSecret rejects webhook calls without the shared secret
func (h *Handlers) RequireWebhookSecret(next http.Handler) http.Handler {
	secret := []byte(h.config.WebhookSecret)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := []byte(r.Header.Get(WebhookSecretHeader))
		if len(secret) == 0 || subtle.ConstantTimeCompare(presented, secret) != 1 {
			httputil.WriteError(w, r, errors.AuthError("invalid webhook secret"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CTIWebhook accepts one call-center event
// @Summary Receive CTI event
// @Description Accepts a call event from the telephony system, matches the caller to a patient, stores a call log and pushes the event to connected consoles.
// @Tags cti
// @Accept json
// @Produce json
// @Param X-CTI-Secret header string true "Shared webhook secret"
// @Param event body events.WebhookPayload true "Call event"
// @Success 200 {object} WebhookAck
// @Failure 400 {object} httputil.ErrorResponse "Unknown or malformed event"
// @Failure 401 {object} httputil.ErrorResponse "Missing or wrong secret"
// @Failure 429 {object} httputil.ErrorResponse "Rate limited"
// @Failure 503 {object} httputil.ErrorResponse "Call log could not be stored"
// @Router /api/cti/webhook [post]
func (h *Handlers) CTIWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		httputil.WriteError(w, r, errors.ValidationError("request body too large or unreadable"))
		return
	}

	payload, err := events.ParseWebhookPayload(body)
	if err != nil {
		h.logger.WithContext(r.Context()).Warn("Rejected CTI payload",
			logging.String("remote_addr", httputil.ClientIP(r)),
			logging.Int("size", len(body)),
			logging.Err(err))
		httputil.WriteError(w, r, err)
		return
	}

	ctx := r.Context()
	event := payload.ToEvent(h.newID(), h.now().UTC())

	patient, err := h.lookupPatient(ctx, event.CallerNumber)
	if err != nil {
		h.logger.WithContext(ctx).Warn("Patient lookup failed, continuing without match",
			logging.String("event_id", event.ID), logging.Err(err))
	} else {
		event = event.WithPatient(patient)
	}

	if err := h.saveCallLog(ctx, event); err != nil {
		httputil.WriteError(w, r, errors.TransientError("failed to store call log", err))
		return
	}

	h.Events.AddEvent(event)
	h.share(ctx, event)

	httputil.WriteJSON(w, http.StatusOK, WebhookAck{Success: true, EventID: event.ID})
}

func (h *Handlers) lookupPatient(ctx context.Context, phone string) (*events.PatientInfo, error) {
	digits := events.NormalizePhone(phone)
	if digits == "" {
		return nil, nil
	}

	var queryErr error
	lookup, err := cache.GetOrCompute(ctx, h.Cache, "patient:phone:"+digits, h.config.PatientTTL,
		func(ctx context.Context) (patientLookup, error) {
			p, err := h.Storage.FindPatientByPhone(ctx, digits)
			if stderrors.Is(err, storage.ErrNotFound) {
				return patientLookup{}, nil
			}
			if err != nil {
				queryErr = err
				return patientLookup{}, err
			}
			return patientLookup{Patient: &events.PatientInfo{ID: p.ID, Name: p.Name, Phone: p.Phone}}, nil
		})
	if queryErr != nil {
		return nil, queryErr
	}
	if err != nil {
		// the value was computed; only caching it failed
		h.logger.WithContext(ctx).Warn("Failed to cache patient lookup", logging.Err(err))
	}
	return lookup.Patient, nil
}

func (h *Handlers) saveCallLog(ctx context.Context, event events.CTIEvent) error {
	log := &storage.CallLog{
		ID:           event.ID,
		EventType:    string(event.EventType),
		CallerNumber: event.CallerNumber,
		CalledNumber: event.CalledNumber,
		OccurredAt:   event.Timestamp,
		ReceivedAt:   event.ReceivedAt,
	}
	if event.Patient != nil {
		log.PatientID = event.Patient.ID
	}

	// A PBX that hangs up mid-retry must not cost the call log
	ctx = context.WithoutCancel(ctx)

	policy := utils.DefaultRetryPolicy("save_call_log")
	policy.Logger = h.logger.WithContext(ctx)
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		h.Metrics.Retried(policy.Operation)
	}
	return utils.RetryDo(ctx, policy, func(ctx context.Context) error {
		return h.Storage.SaveCallLog(ctx, log)
	})
}

// share relays and exports event without holding up the webhook response
func (h *Handlers) share(ctx context.Context, event events.CTIEvent) {
	if h.Relay == nil && h.Exporter == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	h.background.Add(1)
	go func() {
		defer h.background.Done()
		if h.Relay != nil {
			if err := h.Relay.Publish(ctx, event); err != nil {
				h.logger.Warn("Failed to relay CTI event", logging.String("event_id", event.ID), logging.Err(err))
			}
		}
		if h.Exporter != nil {
			h.Exporter.ExportEvent(ctx, event)
		}
	}()
}

// RecentEvents lists buffered events
// @Summary Recent CTI events
// @Description Returns the most recent buffered events, newest first.
// @Tags cti
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of events (default 20, max 100)"
// @Success 200 {object} EventsResponse
// @Failure 400 {object} httputil.ErrorResponse
// @Failure 401 {object} httputil.ErrorResponse
// @Router /api/cti/events [get]
func (h *Handlers) RecentEvents(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.ParseParams(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	recent := h.Events.GetRecentEvents(params.Limit)
	httputil.WriteJSON(w, http.StatusOK, EventsResponse{Events: recent, Count: len(recent)})
}

// RecentCalls lists stored call logs
// @Summary Recent call logs
// @Tags cti
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of call logs (default 20, max 100)"
// @Success 200 {array} storage.CallLog
// @Failure 401 {object} httputil.ErrorResponse
// @Router /api/cti/calls [get]
func (h *Handlers) RecentCalls(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.ParseParams(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	logs, err := h.Storage.ListRecentCallLogs(r.Context(), params.Limit)
	if err != nil {
		httputil.WriteError(w, r, errors.TransientError("failed to list call logs", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, logs)
}

// Stream pushes CTI events as server-sent events
// @Summary CTI event stream
// @Description Server-sent events: "connected" with the client id, "history" with up to 5 recent events, periodic "heartbeat", then "cti-event" for each new event.
// @Tags cti
// @Produce text/event-stream
// @Security BearerAuth
// @Success 200 {string} string "event stream"
// @Failure 401 {object} httputil.ErrorResponse
// @Router /api/cti/stream [get]
func (h *Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	sink, err := events.NewSSEWriter(w)
	if err != nil {
		httputil.WriteError(w, r, errors.InternalError("streaming unsupported", err))
		return
	}
	// the server write timeout would otherwise cut the stream
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	client := events.NewClient(cuid.New(), events.DefaultClientBuffer)
	logger := h.logger.WithContext(r.Context()).WithFields(logging.String("client_id", client.ID))
	logger.Info("Stream client connected")

	err = h.Events.Serve(r.Context(), client, sink, events.StreamOptions{
		Heartbeat:    h.config.SSEHeartbeat,
		HistoryLimit: events.DefaultHistoryLimit,
	})
	if err != nil {
		logger.Info("Stream client dropped", logging.Err(err))
		return
	}
	logger.Info("Stream client disconnected")
}
