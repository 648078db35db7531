// Package httpapi exposes the tracking ledger over HTTP/JSON.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"chainlogistics.org/internal/audit"
	"chainlogistics.org/internal/obs"
	"chainlogistics.org/internal/stream"
	"chainlogistics.org/internal/tracking"
)

// ReadyProbe reports readiness; with a DB configured it pings it.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the tracking service.
type API struct {
	mux        *http.ServeMux
	svc        tracking.Service
	stream     *stream.Stream
	readyProbe ReadyProbe
	version    string

	// Rate limiter settings applied by Handler.
	RateBurst  int
	RatePerSec int
}

func New(svc tracking.Service, st *stream.Stream, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		svc:        svc,
		stream:     st,
		readyProbe: rp,
		version:    version,
		RateBurst:  50,
		RatePerSec: 25,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// identity proofs
	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	// products and their sub-resources
	a.mux.HandleFunc("/v1/products", a.handleProductsCollection)
	a.mux.HandleFunc("/v1/products/batch", a.handleProductsBatch)
	a.mux.HandleFunc("/v1/products/", a.handleProductResource)

	// global event lookup and aggregates
	a.mux.HandleFunc("/v1/events/", a.handleEventResource)
	a.mux.HandleFunc("/v1/stats", a.handleStats)

	// live notices
	a.mux.HandleFunc("/v1/stream", a.Stream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.RateBurst, a.RatePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "chainlog-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "chainlog-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	st, err := a.svc.Stats(r.Context())
	if err != nil {
		handleTrackingError(w, r, err)
		return
	}
	obs.SetStats(st)
	writeJSON(w, http.StatusOK, st)
}

func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	_ = audit.LogEvent(ctx, event, fields)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

var validationErrors = []error{
	tracking.ErrInvalidProductID,
	tracking.ErrProductIDTooLong,
	tracking.ErrNameRequired,
	tracking.ErrNameTooLong,
	tracking.ErrOriginRequired,
	tracking.ErrOriginTooLong,
	tracking.ErrCategoryRequired,
	tracking.ErrCategoryTooLong,
	tracking.ErrDescriptionTooLong,
	tracking.ErrTooManyTags,
	tracking.ErrTagTooLong,
	tracking.ErrTooManyCertifications,
	tracking.ErrTooManyMediaHashes,
	tracking.ErrTooManyCustomFields,
	tracking.ErrCustomValueTooLong,
	tracking.ErrInvalidHash,
	tracking.ErrInvalidEventType,
	tracking.ErrTooManyMetadataFields,
	tracking.ErrMetadataValueTooLong,
	tracking.ErrReasonRequired,
}

func isValidationError(err error) bool {
	for _, sentinel := range validationErrors {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func handleTrackingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tracking.ErrProductNotFound),
		errors.Is(err, tracking.ErrEventNotFound),
		errors.Is(err, tracking.ErrNotAuthorized):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, tracking.ErrUnauthorized):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, tracking.ErrProductExists),
		errors.Is(err, tracking.ErrAlreadyAuthorized),
		errors.Is(err, tracking.ErrProductDeactivated),
		errors.Is(err, tracking.ErrProductActive),
		errors.Is(err, tracking.ErrCannotRemoveOwner):
		writeError(w, r, http.StatusConflict, err.Error())
	case isValidationError(err):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
