package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"alibi/internal/domain"
	"alibi/internal/hub"
	"alibi/internal/platform/config"
	"alibi/internal/platform/metrics"
	"alibi/internal/platform/tracing"
)

type fakeStore struct {
	events    []domain.CameraEvent
	incidents map[string]domain.Incident
}

func newFakeStore() *fakeStore {
	return &fakeStore{incidents: map[string]domain.Incident{}}
}

func (s *fakeStore) AppendEvent(e domain.CameraEvent) error {
	s.events = append(s.events, e)
	return nil
}

func (s *fakeStore) PutIncident(inc domain.Incident, _ *domain.IncidentMetadata) error {
	s.incidents[inc.IncidentID] = inc
	return nil
}

func (s *fakeStore) ForCameraZone(cameraID, zoneID string) []domain.Incident {
	var out []domain.Incident
	for _, inc := range s.incidents {
		if len(inc.Events) > 0 && inc.Events[0].CameraID == cameraID && inc.Events[0].ZoneID == zoneID {
			out = append(out, inc)
		}
	}
	return out
}

func testPipeline() (*Pipeline, *fakeStore, *hub.Hub) {
	store := newFakeStore()
	h := hub.New()
	settings := config.NewStore(config.Defaults(), "")
	m := metrics.New()
	tracer := tracing.New("alibi-test")
	return New(store, h, settings, m, tracer, nil), store, h
}

func TestIngestRejectsInvalidEvent(t *testing.T) {
	p, _, h := testPipeline()
	defer h.Close()

	_, err := p.Ingest(context.Background(), domain.CameraEvent{})
	require.Error(t, err)
}

func TestIngestCreatesIncidentAndPublishes(t *testing.T) {
	p, store, h := testPipeline()
	defer h.Close()

	ch, unsubscribe := h.Subscribe()
	defer unsubscribe()

	evt := domain.CameraEvent{
		EventID: "e1", CameraID: "cam_A", ZoneID: "z1",
		Timestamp: time.Now(), EventType: "person_detected",
		Confidence: 0.9, Severity: 2,
	}
	inc, err := p.Ingest(context.Background(), evt)
	require.NoError(t, err)
	require.Len(t, inc.Events, 1)
	require.Len(t, store.events, 1)

	select {
	case msg := <-ch:
		require.Equal(t, hub.MessageIncidentUpsert, msg.Type)
	case <-time.After(time.Second):
		t.Fatal("expected an incident upsert message")
	}
}

func TestIngestMergesSecondEventIntoSameIncident(t *testing.T) {
	p, store, h := testPipeline()
	defer h.Close()

	base := time.Now()
	first := domain.CameraEvent{
		EventID: "e1", CameraID: "cam_A", ZoneID: "z1",
		Timestamp: base, EventType: "person_detected", Confidence: 0.9, Severity: 2,
	}
	second := domain.CameraEvent{
		EventID: "e2", CameraID: "cam_A", ZoneID: "z1",
		Timestamp: base.Add(5 * time.Second), EventType: "person_detected", Confidence: 0.85, Severity: 2,
	}

	inc1, err := p.Ingest(context.Background(), first)
	require.NoError(t, err)
	inc2, err := p.Ingest(context.Background(), second)
	require.NoError(t, err)

	require.Equal(t, inc1.IncidentID, inc2.IncidentID)
	require.Len(t, inc2.Events, 2)
	require.Len(t, store.incidents, 1)
}
