package domain

import "time"

// IncidentStatus enumerates the lifecycle states of an incident.
type IncidentStatus string

const (
	StatusNew                   IncidentStatus = "new"
	StatusTriage                IncidentStatus = "triage"
	StatusDismissed             IncidentStatus = "dismissed"
	StatusEscalated             IncidentStatus = "escalated"
	StatusDispatchPendingReview IncidentStatus = "dispatch_pending_review"
	StatusDispatchAuthorized    IncidentStatus = "dispatch_authorized"
	StatusClosed                IncidentStatus = "closed"
)

// Incident groups related camera events into a single operator-facing item.
// It is append-only: Events only ever grows, and every mutation is persisted
// as a new version by the log store.
type Incident struct {
	IncidentID string         `json:"incident_id"`
	Status     IncidentStatus `json:"status"`
	CreatedTS  time.Time      `json:"created_ts"`
	UpdatedTS  time.Time      `json:"updated_ts"`
	Events     []CameraEvent  `json:"events"`
	Version    int            `json:"version"`
}

// MaxSeverity returns the highest severity among the incident's events.
func (i Incident) MaxSeverity() int {
	max := 0
	for _, e := range i.Events {
		if e.Severity > max {
			max = e.Severity
		}
	}
	return max
}

// AvgConfidence returns the mean confidence across the incident's events.
func (i Incident) AvgConfidence() float64 {
	if len(i.Events) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range i.Events {
		sum += e.Confidence
	}
	return sum / float64(len(i.Events))
}

// WatchlistMatchPresent reports whether any event in the incident claims a
// watchlist match.
func (i Incident) WatchlistMatchPresent() bool {
	for _, e := range i.Events {
		if e.WatchlistMatch() {
			return true
		}
	}
	return false
}

// HasEvidence reports whether any event carries a clip or snapshot reference.
func (i Incident) HasEvidence() bool {
	for _, e := range i.Events {
		if e.HasEvidence() {
			return true
		}
	}
	return false
}

// EventTypes returns the distinct event types observed in the incident, in
// first-seen order.
func (i Incident) EventTypes() []string {
	seen := make(map[string]bool, len(i.Events))
	var out []string
	for _, e := range i.Events {
		if !seen[e.EventType] {
			seen[e.EventType] = true
			out = append(out, e.EventType)
		}
	}
	return out
}

// LatestEventTS returns the latest timestamp among the incident's events
// (regardless of append order), or the zero time if it has no events.
func (i Incident) LatestEventTS() time.Time {
	if len(i.Events) == 0 {
		return time.Time{}
	}
	latest := i.Events[0].Timestamp
	for _, e := range i.Events[1:] {
		if e.Timestamp.After(latest) {
			latest = e.Timestamp
		}
	}
	return latest
}

// Tags returns the incident's distinct event types, informational only.
// It is equivalent to EventTypes; the shift report does not read it.
func (i Incident) Tags() []string {
	return i.EventTypes()
}

// EvidenceRefs returns the clip/snapshot URLs of every event, in order.
func (i Incident) EvidenceRefs() []string {
	var refs []string
	for _, e := range i.Events {
		if e.ClipURL != "" {
			refs = append(refs, e.ClipURL)
		}
		if e.SnapshotURL != "" {
			refs = append(refs, e.SnapshotURL)
		}
	}
	return refs
}
