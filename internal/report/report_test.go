package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"alibi/internal/domain"
	"alibi/internal/logstore"
	"alibi/internal/platform/config"
)

func newTestStore(t *testing.T) *logstore.Store {
	t.Helper()
	store, err := logstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedIncident(t *testing.T, store *logstore.Store, id string, createdTS, updatedTS time.Time, plan domain.IncidentPlan) {
	t.Helper()
	inc := domain.Incident{
		IncidentID: id,
		Status:     domain.StatusTriage,
		CreatedTS:  createdTS,
		UpdatedTS:  updatedTS,
		Events: []domain.CameraEvent{
			{EventID: id + "_e1", CameraID: "cam_1", ZoneID: "zone_a", EventType: "person_detected", Confidence: 0.9, Severity: 3, Timestamp: createdTS},
		},
	}
	require.NoError(t, store.PutIncident(inc, &domain.IncidentMetadata{Plan: plan}))
}

func TestGenerateComputesKPIsWithinWindow(t *testing.T) {
	store := newTestStore(t)
	settings := config.NewStore(config.Defaults(), "")

	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	seedIncident(t, store, "inc_1", base, base.Add(5*time.Minute), domain.IncidentPlan{ActionRiskFlags: []string{domain.RiskWatchlistMatch}})
	seedIncident(t, store, "inc_2", base.Add(time.Hour), base.Add(time.Hour+2*time.Minute), domain.IncidentPlan{})
	// Outside the report window entirely.
	seedIncident(t, store, "inc_3", base.Add(48*time.Hour), base.Add(48*time.Hour), domain.IncidentPlan{})

	require.NoError(t, store.AppendDecision(domain.Decision{
		IncidentID: "inc_1", DecisionTS: base.Add(5 * time.Minute), ActionTaken: domain.ActionConfirm, OperatorUsername: "oper1",
	}))
	require.NoError(t, store.AppendDecision(domain.Decision{
		IncidentID: "inc_2", DecisionTS: base.Add(time.Hour + 2*time.Minute), ActionTaken: domain.ActionDismiss,
		OperatorUsername: "oper1", DismissReason: domain.DismissNormalBehavior,
	}))

	gen := New(store, settings, nil)
	result, err := gen.Generate(context.Background(), base, base.Add(24*time.Hour))
	require.NoError(t, err)

	report := result.(Report)
	require.Equal(t, 2, report.KPIs.TotalIncidents)
	require.InDelta(t, 0.5, report.KPIs.ConfirmedRate, 1e-9)
	require.InDelta(t, 0.5, report.KPIs.DismissedRate, 1e-9)
	require.Equal(t, 1, report.KPIs.RiskFlagBreakdown[domain.RiskWatchlistMatch])
	require.Len(t, report.KPIs.TopCameras, 1)
	require.Equal(t, "cam_1", report.KPIs.TopCameras[0].ID)
	require.Equal(t, 2, report.KPIs.TopCameras[0].Count)
	require.NotEmpty(t, report.Narrative)
}

func TestGenerateEmptyWindowReturnsZeroKPIs(t *testing.T) {
	store := newTestStore(t)
	settings := config.NewStore(config.Defaults(), "")

	gen := New(store, settings, nil)
	result, err := gen.Generate(context.Background(), time.Now().UTC(), time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)

	report := result.(Report)
	require.Equal(t, 0, report.KPIs.TotalIncidents)
	require.Zero(t, report.KPIs.DismissedRate)
	require.Empty(t, report.KPIs.TopCameras)
}

type stubRewriter struct {
	out string
	err error
}

func (s stubRewriter) Rewrite(_ context.Context, _, _ string) (string, error) {
	return s.out, s.err
}

func TestGenerateUsesLLMRewriteWhenEnabled(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().UTC()
	seedIncident(t, store, "inc_1", base, base, domain.IncidentPlan{})

	doc := config.Defaults()
	doc.LLM.Enabled = true
	settings := config.NewStore(doc, "")

	gen := New(store, settings, stubRewriter{out: "A calmer narrative paragraph."})
	result, err := gen.Generate(context.Background(), base.Add(-time.Minute), base.Add(time.Minute))
	require.NoError(t, err)

	report := result.(Report)
	require.Equal(t, "A calmer narrative paragraph.", report.Narrative)
}
