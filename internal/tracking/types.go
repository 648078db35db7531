package tracking

import "math"

// Timestamps are unix seconds throughout; the ledger records whatever its
// injected clock says, truncated to seconds.

// DeactivationRecord captures why and by whom a product was taken out of
// circulation. Present on a product iff it is inactive; cleared again on
// reactivation.
type DeactivationRecord struct {
	Reason        string `json:"reason"`
	DeactivatedAt int64  `json:"deactivated_at"`
	DeactivatedBy string `json:"deactivated_by"`
}

// ProductConfig is the registration input.
type ProductConfig struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	OriginLocation string            `json:"origin_location"`
	Category       string            `json:"category"`
	Tags           []string          `json:"tags,omitempty"`
	Certifications []string          `json:"certifications,omitempty"`
	MediaHashes    []string          `json:"media_hashes,omitempty"`
	Custom         map[string]string `json:"custom,omitempty"`
}

// Product is a tracked item. The identifier is immutable once registered.
type Product struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	OriginLocation string              `json:"origin_location"`
	Category       string              `json:"category"`
	Tags           []string            `json:"tags,omitempty"`
	Certifications []string            `json:"certifications,omitempty"`
	MediaHashes    []string            `json:"media_hashes,omitempty"`
	Custom         map[string]string   `json:"custom,omitempty"`
	Owner          string              `json:"owner"`
	CreatedAt      int64               `json:"created_at"`
	Active         bool                `json:"active"`
	Deactivation   *DeactivationRecord `json:"deactivation,omitempty"`
}

// EventInput describes a tracking event to append.
type EventInput struct {
	EventType string            `json:"event_type"`
	Location  string            `json:"location"`
	DataHash  string            `json:"data_hash"`
	Note      string            `json:"note"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// TrackingEvent is immutable once written. Identifiers come from a single
// global sequence shared by all products and are never reused.
type TrackingEvent struct {
	EventID   uint64            `json:"event_id"`
	ProductID string            `json:"product_id"`
	Actor     string            `json:"actor"`
	Timestamp int64             `json:"timestamp"`
	EventType string            `json:"event_type"`
	Location  string            `json:"location"`
	DataHash  string            `json:"data_hash"`
	Note      string            `json:"note"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// EventPage is one page of a paginated event query.
type EventPage struct {
	Events     []TrackingEvent `json:"events"`
	TotalCount uint64          `json:"total_count"`
	HasMore    bool            `json:"has_more"`
}

// Stats are the incrementally maintained aggregate counters. TotalProducts
// only ever grows; ActiveProducts follows deactivate/reactivate.
type Stats struct {
	TotalProducts  uint64 `json:"total_products"`
	ActiveProducts uint64 `json:"active_products"`
}

// Filter sentinels: a field at its sentinel value places no constraint on
// the query.
const (
	// NoStartTime leaves the lower time bound open. An event at timestamp
	// exactly 0 can therefore never be selected by a lower bound.
	NoStartTime int64 = 0
	// NoEndTime leaves the upper time bound open.
	NoEndTime int64 = math.MaxInt64
)

// EventFilter is a composite event filter. Empty EventType and Location
// strings, StartTime == NoStartTime and EndTime == NoEndTime mean
// "unconstrained".
type EventFilter struct {
	EventType string `json:"event_type"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	Location  string `json:"location"`
}

// Unconstrained reports whether the filter matches every event.
func (f EventFilter) Unconstrained() bool {
	return f.EventType == "" && f.Location == "" &&
		f.StartTime == NoStartTime && f.EndTime == NoEndTime
}

// Matches applies the sentinel convention to a single event.
func (f EventFilter) Matches(ev TrackingEvent) bool {
	if f.EventType != "" && ev.EventType != f.EventType {
		return false
	}
	if f.StartTime != NoStartTime && ev.Timestamp < f.StartTime {
		return false
	}
	if f.EndTime != NoEndTime && ev.Timestamp > f.EndTime {
		return false
	}
	if f.Location != "" && ev.Location != f.Location {
		return false
	}
	return true
}

// Notice is a fire-and-forget domain notification. Delivery is best effort
// and never required for ledger correctness.
type Notice struct {
	Kind      string `json:"kind"`
	ProductID string `json:"product_id"`
	Actor     string `json:"actor"`
	EventID   uint64 `json:"event_id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Notice kinds.
const (
	NoticeProductRegistered  = "product_registered"
	NoticeProductDeactivated = "product_deactivated"
	NoticeProductReactivated = "product_reactivated"
	NoticeProductTransferred = "product_transferred"
	NoticeTrackingEvent      = "tracking_event"
)
