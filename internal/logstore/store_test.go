package logstore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"alibi/internal/domain"
)

func countLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data = bytes.TrimRight(data, "\n")
	if len(data) == 0 {
		return 0
	}
	return bytes.Count(data, []byte("\n")) + 1
}

func TestStorePutIncidentBumpsVersion(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()

	inc := domain.Incident{IncidentID: "inc-1", Status: domain.StatusNew, UpdatedTS: time.Now()}
	require.NoError(t, store.PutIncident(inc, &domain.IncidentMetadata{}))

	got, meta, err := store.GetIncident("inc-1")
	require.NoError(t, err)
	require.Equal(t, 1, got.Version)
	require.NotNil(t, meta)

	inc.Status = domain.StatusTriage
	require.NoError(t, store.PutIncident(inc, nil))

	got, meta, err = store.GetIncident("inc-1")
	require.NoError(t, err)
	require.Equal(t, 2, got.Version)
	require.Equal(t, domain.StatusTriage, got.Status)
	require.NotNil(t, meta, "metadata must be carried forward when the caller passes nil")
}

func TestStoreReopenRebuildsIndexFromLatestRecord(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	inc := domain.Incident{IncidentID: "inc-2", Status: domain.StatusNew, UpdatedTS: time.Now()}
	require.NoError(t, store.PutIncident(inc, &domain.IncidentMetadata{}))
	inc.Status = domain.StatusEscalated
	require.NoError(t, store.PutIncident(inc, nil))
	require.NoError(t, store.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, _, err := reopened.GetIncident("inc-2")
	require.NoError(t, err)
	require.Equal(t, domain.StatusEscalated, got.Status)
	require.Equal(t, 2, got.Version)
}

func TestStoreGetIncidentNotFound(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()

	_, _, err = store.GetIncident("missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAppendEventPersists(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()

	evt := domain.CameraEvent{
		EventID: "evt-1", CameraID: "cam-1", ZoneID: "zone-1",
		Timestamp: time.Now(), EventType: "loitering", Confidence: 0.9, Severity: 2,
	}
	require.NoError(t, store.AppendEvent(evt))
	require.FileExists(t, filepath.Join(dir, "events.jsonl"))
}

func TestAppendEventSkipsDuplicateEventID(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()

	evt := domain.CameraEvent{
		EventID: "evt-1", CameraID: "cam-1", ZoneID: "zone-1",
		Timestamp: time.Now(), EventType: "loitering", Confidence: 0.9, Severity: 2,
	}
	require.NoError(t, store.AppendEvent(evt))
	require.NoError(t, store.AppendEvent(evt))
	require.Equal(t, 1, countLines(t, filepath.Join(dir, "events.jsonl")))
}

func TestAppendEventDedupSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	evt := domain.CameraEvent{
		EventID: "evt-1", CameraID: "cam-1", ZoneID: "zone-1",
		Timestamp: time.Now(), EventType: "loitering", Confidence: 0.9, Severity: 2,
	}
	require.NoError(t, store.AppendEvent(evt))
	require.NoError(t, store.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	require.NoError(t, reopened.AppendEvent(evt))
	require.Equal(t, 1, countLines(t, filepath.Join(dir, "events.jsonl")))
}

func TestReplayEventsReadsFlatJSONL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.jsonl")
	w, err := openWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.append(domain.CameraEvent{EventID: "evt-1", CameraID: "cam-1", ZoneID: "zone-1", EventType: "loitering"}))
	require.NoError(t, w.append(domain.CameraEvent{EventID: "evt-2", CameraID: "cam-1", ZoneID: "zone-1", EventType: "loitering"}))
	require.NoError(t, w.close())

	events, err := ReplayEvents(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "evt-2", events[1].EventID)
}
