// Package domain holds the core entities shared by every component of the
// incident pipeline: camera events, incidents, plans, alerts and decisions.
package domain

import (
	"fmt"
	"time"
)

// CameraEvent is a single observation from one camera at one moment. It is
// immutable once validated and stored.
type CameraEvent struct {
	EventID     string         `json:"event_id"`
	CameraID    string         `json:"camera_id"`
	ZoneID      string         `json:"zone_id"`
	Timestamp   time.Time      `json:"ts"`
	EventType   string         `json:"event_type"`
	Confidence  float64        `json:"confidence"`
	Severity    int            `json:"severity"`
	ClipURL     string         `json:"clip_url,omitempty"`
	SnapshotURL string         `json:"snapshot_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Validate enforces the hard invariants from the event schema. Validation
// failure is never silently coerced: callers must reject the event outright.
// Schema-invalid events return 422 (ErrUnprocessable), not 400, per spec.
func (e CameraEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("%w: event_id is required", ErrUnprocessable)
	}
	if e.CameraID == "" {
		return fmt.Errorf("%w: camera_id is required", ErrUnprocessable)
	}
	if e.ZoneID == "" {
		return fmt.Errorf("%w: zone_id is required", ErrUnprocessable)
	}
	if e.EventType == "" {
		return fmt.Errorf("%w: event_type is required", ErrUnprocessable)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: ts is required and must be parseable", ErrUnprocessable)
	}
	if e.Confidence < 0.0 || e.Confidence > 1.0 {
		return fmt.Errorf("%w: confidence must be in [0,1], got %f", ErrUnprocessable, e.Confidence)
	}
	if e.Severity < 1 || e.Severity > 5 {
		return fmt.Errorf("%w: severity must be in 1..5, got %d", ErrUnprocessable, e.Severity)
	}
	return nil
}

// WatchlistMatch reports whether the event's metadata claims a match against
// a person-of-interest watchlist. The claim always requires human
// verification downstream.
func (e CameraEvent) WatchlistMatch() bool {
	v, ok := e.Metadata["watchlist_match"]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// PlateMismatch reports whether the event's metadata flags a plate/vehicle
// mismatch detector hit.
func (e CameraEvent) PlateMismatch() bool {
	v, ok := e.Metadata["plate_mismatch"]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// PersonCount returns the detector-reported person count, if present.
func (e CameraEvent) PersonCount() (int, bool) {
	v, ok := e.Metadata["person_count"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// HasEvidence reports whether the event carries a clip or snapshot reference.
func (e CameraEvent) HasEvidence() bool {
	return e.ClipURL != "" || e.SnapshotURL != ""
}
