package simulator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"alibi/internal/audit"
	"alibi/internal/clock"
	"alibi/internal/domain"
)

type recordingIngester struct {
	mu     sync.Mutex
	events []domain.CameraEvent
}

func (r *recordingIngester) Ingest(_ context.Context, evt domain.CameraEvent) (domain.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return domain.Incident{IncidentID: evt.EventID}, nil
}

func (r *recordingIngester) snapshot() []domain.CameraEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.CameraEvent, len(r.events))
	copy(out, r.events)
	return out
}

type noopRecorder struct{}

func (noopRecorder) AppendAudit(domain.AuditEvent) error { return nil }

func newTestSimulator(ingester Ingester) *Simulator {
	return New(ingester, clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)), audit.NewService(noopRecorder{}, nil))
}

func TestGeneratorIsDeterministicForSameSeed(t *testing.T) {
	scenario := Presets["mixed_events"]
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	g1 := newGenerator(scenario, 42, clk)
	g2 := newGenerator(scenario, 42, clk)

	for i := 0; i < 20; i++ {
		e1 := g1.Next()
		e2 := g2.Next()
		require.Equal(t, e1.EventType, e2.EventType)
		require.Equal(t, e1.CameraID, e2.CameraID)
		require.InDelta(t, e1.Confidence, e2.Confidence, 1e-9)
	}
}

func TestLookupRejectsUnknownScenario(t *testing.T) {
	_, err := Lookup("not_a_scenario")
	require.Error(t, err)
}

func TestStartRejectsOutOfRangeRate(t *testing.T) {
	sim := newTestSimulator(&recordingIngester{})
	_, err := sim.Start("quiet_shift", 0.01, 1)
	require.Error(t, err)
}

func TestStartRejectsSecondConcurrentRun(t *testing.T) {
	ingester := &recordingIngester{}
	sim := newTestSimulator(ingester)

	_, err := sim.Start("quiet_shift", 120, 1)
	require.NoError(t, err)
	defer sim.Stop()

	_, err = sim.Start("quiet_shift", 120, 2)
	require.Error(t, err)
}

func TestStopDrainsAndResetsState(t *testing.T) {
	ingester := &recordingIngester{}
	sim := newTestSimulator(ingester)

	_, err := sim.Start("quiet_shift", 120, 1)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	status, err := sim.Stop()
	require.NoError(t, err)
	st := status.(Status)
	require.False(t, st.Running)

	_, err = sim.Start("quiet_shift", 120, 1)
	require.NoError(t, err)
	require.NoError(t, func() error { _, err := sim.Stop(); return err }())
}

func TestReplayAcceptsValidAndCollectsInvalidLines(t *testing.T) {
	ingester := &recordingIngester{}
	sim := newTestSimulator(ingester)

	data := []byte(
		`{"event_id":"e1","camera_id":"cam_A","zone_id":"z1","ts":"2026-01-01T00:00:00Z","event_type":"person_detected","confidence":0.9,"severity":2}
not valid json
{"event_id":"","camera_id":"cam_A","zone_id":"z1","ts":"2026-01-01T00:00:01Z","event_type":"person_detected","confidence":0.9,"severity":2}
`)

	result, err := sim.Replay(context.Background(), data)
	require.NoError(t, err)
	rr := result.(ReplayResult)
	require.Equal(t, 1, rr.EventsAccepted)
	require.Len(t, rr.Errors, 2)
	require.Len(t, ingester.snapshot(), 1)
}
