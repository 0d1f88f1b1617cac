// Package grouper attaches each incoming camera event to the right
// incident: the same incident if it is a near-duplicate, a compatible
// recent incident if it merges, or a freshly minted incident otherwise.
package grouper

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/google/uuid"

	"alibi/internal/domain"
	"alibi/internal/platform/config"
)

// Index is the read side the grouper needs: every known incident for a
// given camera+zone. Callers (the ingestion pipeline)
// supply this from the log store's in-memory index.
type Index interface {
	// ForCameraZone returns incidents at cameraID/zoneID, in no particular
	// order; the grouper itself applies the tie-break rules.
	ForCameraZone(cameraID, zoneID string) []domain.Incident
}

// Result is the grouper's decision: either an existing incident to append
// the event to, or a freshly minted one.
type Result struct {
	Incident domain.Incident
	Created  bool
}

// Group applies the dedup/merge/create algorithm from spec §4.5 and
// returns the incident the event now belongs to, with evt already
// appended to its Events slice. The caller is responsible for persisting
// the result.
func Group(index Index, evt domain.CameraEvent, grouping config.IncidentGrouping) Result {
	candidates := index.ForCameraZone(evt.CameraID, evt.ZoneID)
	sortByRecency(candidates)

	dedupWindow := time.Duration(grouping.DedupWindowSeconds) * time.Second
	for _, inc := range candidates {
		if hasEventType(inc, evt.EventType) && withinWindow(inc.LatestEventTS(), evt.Timestamp, dedupWindow) {
			if !hasEventID(inc, evt.EventID) {
				inc.Events = append(inc.Events, evt)
			}
			return Result{Incident: inc, Created: false}
		}
	}

	mergeWindow := time.Duration(grouping.MergeWindowSeconds) * time.Second
	for _, inc := range candidates {
		if !withinWindow(inc.LatestEventTS(), evt.Timestamp, mergeWindow) {
			continue
		}
		if isCompatible(inc, evt.EventType, grouping.CompatibleEventTypes) {
			if !hasEventID(inc, evt.EventID) {
				inc.Events = append(inc.Events, evt)
			}
			return Result{Incident: inc, Created: false}
		}
	}

	return Result{Incident: newIncident(evt), Created: true}
}

// sortByRecency orders candidates "most recent first" by latest-event
// timestamp, then incident_id lexicographic, matching spec §4.5's
// tie-break rule so repeated runs over the same input are deterministic.
func sortByRecency(incidents []domain.Incident) {
	sort.Slice(incidents, func(i, j int) bool {
		ti, tj := incidents[i].LatestEventTS(), incidents[j].LatestEventTS()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return incidents[i].IncidentID < incidents[j].IncidentID
	})
}

// hasEventID reports whether inc already holds an event with the given
// event_id, so re-ingesting the same event_id within the dedup/merge window
// attaches to the same incident without appending a second copy (spec §8.1,
// §8.8: exactly one record per event_id).
func hasEventID(inc domain.Incident, eventID string) bool {
	for _, e := range inc.Events {
		if e.EventID == eventID {
			return true
		}
	}
	return false
}

func hasEventType(inc domain.Incident, eventType string) bool {
	for _, t := range inc.EventTypes() {
		if t == eventType {
			return true
		}
	}
	return false
}

func withinWindow(latest, incoming time.Time, window time.Duration) bool {
	if latest.IsZero() {
		return false
	}
	delta := incoming.Sub(latest)
	if delta < 0 {
		delta = -delta
	}
	return delta <= window
}

// isCompatible reports whether eventType is compatible with any event
// type already present on inc, per the configured compatibility map. A
// type is always compatible with itself even absent a map entry.
func isCompatible(inc domain.Incident, eventType string, compat map[string][]string) bool {
	for _, existing := range inc.EventTypes() {
		if existing == eventType {
			return true
		}
		for _, c := range compat[existing] {
			if c == eventType {
				return true
			}
		}
	}
	return false
}

func newIncident(evt domain.CameraEvent) domain.Incident {
	return domain.Incident{
		IncidentID: newIncidentID(evt),
		Status:     domain.StatusNew,
		CreatedTS:  evt.Timestamp,
		UpdatedTS:  evt.Timestamp,
		Events:     []domain.CameraEvent{evt},
	}
}

// newIncidentID derives a stable hash from camera_id|zone_id|floor(ts,1s)
// plus a short random suffix so two events at the identical second on the
// identical camera+zone that both miss dedup/merge still get distinct ids.
func newIncidentID(evt domain.CameraEvent) string {
	floored := evt.Timestamp.Truncate(time.Second).UTC().Format(time.RFC3339)
	sum := sha256.Sum256([]byte(evt.CameraID + "|" + evt.ZoneID + "|" + floored))
	short := uuid.NewString()[:8]
	return hex.EncodeToString(sum[:8]) + "-" + short
}
