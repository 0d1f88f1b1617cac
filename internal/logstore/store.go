package logstore

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"alibi/internal/domain"
)

type eventRecord struct {
	RecordTS time.Time          `json:"record_ts"`
	Kind     domain.RecordKind  `json:"kind"`
	Payload  domain.CameraEvent `json:"payload"`
}

type incidentRecord struct {
	RecordTS time.Time                `json:"record_ts"`
	Kind     domain.RecordKind        `json:"kind"`
	Payload  domain.Incident          `json:"payload"`
	Metadata *domain.IncidentMetadata `json:"_metadata,omitempty"`
}

type decisionRecord struct {
	RecordTS time.Time         `json:"record_ts"`
	Kind     domain.RecordKind `json:"kind"`
	Payload  domain.Decision   `json:"payload"`
}

type auditRecord struct {
	RecordTS time.Time         `json:"record_ts"`
	Kind     domain.RecordKind `json:"kind"`
	Payload  domain.AuditEvent `json:"payload"`
}

// incidentEntry is what the in-memory latest-wins index keeps: the
// incident payload plus the metadata that must be carried forward
// verbatim whenever a later update doesn't re-run the engine.
type incidentEntry struct {
	incident domain.Incident
	metadata *domain.IncidentMetadata
	version  int
}

// Store is the four-file append-only log store. Events, decisions and
// audit entries are pure append logs; incidents additionally maintain an
// in-memory "latest record wins" index built by a forward scan on Open.
type Store struct {
	eventsW    *writer
	decisionsW *writer
	auditW     *writer
	incidentsW *writer

	decisionsPath string

	mu        sync.RWMutex
	incidents map[string]incidentEntry
	eventIDs  map[string]struct{}
}

// Open creates (if absent) and scans all four JSONL files under dir.
func Open(dir string) (*Store, error) {
	s := &Store{incidents: map[string]incidentEntry{}, eventIDs: map[string]struct{}{}}

	eventsPath := filepath.Join(dir, "events.jsonl")
	s.decisionsPath = filepath.Join(dir, "decisions.jsonl")

	var err error
	if s.eventsW, err = openWriter(eventsPath); err != nil {
		return nil, err
	}
	if s.decisionsW, err = openWriter(s.decisionsPath); err != nil {
		return nil, err
	}
	if s.auditW, err = openWriter(filepath.Join(dir, "audit.jsonl")); err != nil {
		return nil, err
	}
	if s.incidentsW, err = openWriter(filepath.Join(dir, "incidents.jsonl")); err != nil {
		return nil, err
	}

	if err := scanLines(eventsPath, func(rec eventRecord) error {
		s.eventIDs[rec.Payload.EventID] = struct{}{}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := scanLines(filepath.Join(dir, "incidents.jsonl"), func(rec incidentRecord) error {
		s.incidents[rec.Payload.IncidentID] = incidentEntry{
			incident: rec.Payload,
			metadata: rec.Metadata,
			version:  rec.Payload.Version,
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return s, nil
}

// Close closes all four underlying files.
func (s *Store) Close() error {
	for _, w := range []*writer{s.eventsW, s.decisionsW, s.auditW, s.incidentsW} {
		if err := w.close(); err != nil {
			return err
		}
	}
	return nil
}

// AppendEvent appends a validated camera event to the events log, keyed by
// event_id: a re-ingested event_id already on file is a no-op rather than a
// second line, so reopening the store and replaying inputs never
// double-appends (spec §8.1, §8.8: exactly one record per event_id).
func (s *Store) AppendEvent(e domain.CameraEvent) error {
	s.mu.Lock()
	if _, seen := s.eventIDs[e.EventID]; seen {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.eventsW.append(eventRecord{RecordTS: time.Now().UTC(), Kind: domain.KindEvent, Payload: e}); err != nil {
		return err
	}

	s.mu.Lock()
	s.eventIDs[e.EventID] = struct{}{}
	s.mu.Unlock()
	return nil
}

// AppendDecision appends an operator decision to the decisions log.
func (s *Store) AppendDecision(d domain.Decision) error {
	return s.decisionsW.append(decisionRecord{RecordTS: time.Now().UTC(), Kind: domain.KindDecision, Payload: d})
}

// AppendAudit appends an audit event to the audit log.
func (s *Store) AppendAudit(a domain.AuditEvent) error {
	return s.auditW.append(auditRecord{RecordTS: time.Now().UTC(), Kind: domain.KindAudit, Payload: a})
}

// PutIncident appends a new version of an incident, bumping its version
// number, and updates the in-memory index. metadata may be nil only when
// the caller is deliberately not re-running the engine and an entry
// already exists to copy metadata forward from: a nil metadata is then
// replaced by the previous version's metadata.
func (s *Store) PutIncident(inc domain.Incident, metadata *domain.IncidentMetadata) error {
	s.mu.Lock()
	prev, existed := s.incidents[inc.IncidentID]
	if existed {
		inc.Version = prev.version + 1
		if metadata == nil {
			metadata = prev.metadata
		}
	} else if inc.Version == 0 {
		inc.Version = 1
	}
	s.mu.Unlock()

	if err := s.incidentsW.append(incidentRecord{
		RecordTS: time.Now().UTC(),
		Kind:     domain.KindIncident,
		Payload:  inc,
		Metadata: metadata,
	}); err != nil {
		return err
	}

	s.mu.Lock()
	s.incidents[inc.IncidentID] = incidentEntry{incident: inc, metadata: metadata, version: inc.Version}
	s.mu.Unlock()
	return nil
}

// GetIncident returns the latest known version of an incident plus its
// metadata.
func (s *Store) GetIncident(id string) (domain.Incident, *domain.IncidentMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.incidents[id]
	if !ok {
		return domain.Incident{}, nil, fmt.Errorf("%w: incident %q", domain.ErrNotFound, id)
	}
	return entry.incident, entry.metadata, nil
}

// ListIncidents returns every incident currently in the index, most
// recently updated first.
func (s *Store) ListIncidents() []domain.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Incident, 0, len(s.incidents))
	for _, entry := range s.incidents {
		out = append(out, entry.incident)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedTS.After(out[j].UpdatedTS) })
	return out
}

// ListDecisions returns every recorded decision in file order, by
// rescanning the decisions log. Decisions have no in-memory index since
// nothing but the shift report reads them in bulk.
func (s *Store) ListDecisions() ([]domain.Decision, error) {
	var out []domain.Decision
	err := scanLines(s.decisionsPath, func(rec decisionRecord) error {
		out = append(out, rec.Payload)
		return nil
	})
	return out, err
}

// ForCameraZone returns every incident whose first event matches
// cameraID/zoneID, in no particular order, satisfying grouper.Index so the
// ingestion pipeline can hand the store straight to grouper.Group.
func (s *Store) ForCameraZone(cameraID, zoneID string) []domain.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Incident
	for _, entry := range s.incidents {
		if len(entry.incident.Events) == 0 {
			continue
		}
		first := entry.incident.Events[0]
		if first.CameraID == cameraID && first.ZoneID == zoneID {
			out = append(out, entry.incident)
		}
	}
	return out
}
