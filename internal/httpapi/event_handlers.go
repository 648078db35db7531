package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"chainlogistics.org/internal/identity"
	"chainlogistics.org/internal/tracking"
)

type batchAppendRequest struct {
	Events []tracking.EventInput `json:"events"`
}

type appendResponse struct {
	EventID uint64 `json:"event_id"`
}

type batchAppendResponse struct {
	EventIDs []uint64 `json:"event_ids"`
}

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

func (a *API) appendEvent(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := identity.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var in tracking.EventInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	eventID, err := a.svc.AddTrackingEvent(r.Context(), actor, id, in)
	if err != nil {
		handleTrackingError(w, r, err)
		return
	}

	a.audit(r.Context(), "event.append", map[string]any{
		"product_id": id,
		"event_id":   eventID,
		"event_type": in.EventType,
	})

	w.Header().Set("Location", fmt.Sprintf("/v1/events/%d", eventID))
	writeJSON(w, http.StatusCreated, appendResponse{EventID: eventID})
}

func (a *API) appendEventBatch(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := identity.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req batchAppendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Events) == 0 {
		writeError(w, r, http.StatusBadRequest, "events are required")
		return
	}

	eventIDs, err := a.svc.AddTrackingEvents(r.Context(), actor, id, req.Events)
	if err != nil {
		handleTrackingError(w, r, err)
		return
	}

	a.audit(r.Context(), "event.append_batch", map[string]any{
		"product_id": id,
		"count":      len(eventIDs),
	})

	writeJSON(w, http.StatusCreated, batchAppendResponse{EventIDs: eventIDs})
}

// listEvents dispatches the paginated event queries from query parameters:
// type, location, start, end, order=recent, offset, limit.
func (a *API) listEvents(w http.ResponseWriter, r *http.Request, id string) {
	q := r.URL.Query()

	offset, err := parseUintParam(q.Get("offset"), 0)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	limit, err := parseUintParam(q.Get("limit"), defaultPageLimit)
	if err != nil || limit > maxPageLimit {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("limit must be an integer between 0 and %d", maxPageLimit))
		return
	}

	start := tracking.NoStartTime
	if raw := strings.TrimSpace(q.Get("start")); raw != "" {
		start, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "start must be a unix timestamp")
			return
		}
	}
	end := tracking.NoEndTime
	if raw := strings.TrimSpace(q.Get("end")); raw != "" {
		end, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "end must be a unix timestamp")
			return
		}
	}

	eventType := strings.TrimSpace(q.Get("type"))
	location := strings.TrimSpace(q.Get("location"))
	recent := q.Get("order") == "recent"
	timeBound := start != tracking.NoStartTime || end != tracking.NoEndTime

	var page tracking.EventPage
	switch {
	case recent:
		if eventType != "" || location != "" || timeBound {
			writeError(w, r, http.StatusBadRequest, "order=recent cannot be combined with filters")
			return
		}
		page, err = a.svc.RecentEvents(r.Context(), id, offset, limit)
	case location != "" || (eventType != "" && timeBound):
		filter := tracking.EventFilter{
			EventType: eventType,
			StartTime: start,
			EndTime:   end,
			Location:  location,
		}
		page, err = a.svc.FilteredEvents(r.Context(), id, filter, offset, limit)
	case eventType != "":
		page, err = a.svc.EventsByType(r.Context(), id, eventType, offset, limit)
	case timeBound:
		page, err = a.svc.EventsByTimeRange(r.Context(), id, start, end, offset, limit)
	default:
		page, err = a.svc.ProductEvents(r.Context(), id, offset, limit)
	}
	if err != nil {
		handleTrackingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleEventResource serves GET /v1/events/{id} by global identifier.
func (a *API) handleEventResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/v1/events/")
	if raw == "" || strings.Contains(raw, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	eventID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "event id must be a positive integer")
		return
	}

	ev, err := a.svc.GetEvent(r.Context(), eventID)
	if err != nil {
		handleTrackingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func parseUintParam(raw string, def uint64) (uint64, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	return strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
}
