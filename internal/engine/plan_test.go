package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"alibi/internal/domain"
	"alibi/internal/platform/config"
)

func thresholds() config.Thresholds {
	return config.Thresholds{MinConfidenceForNotify: 0.75, HighSeverityThreshold: 4}
}

func TestBuildPlanLowConfidenceRecommendsMonitor(t *testing.T) {
	inc := domain.Incident{
		IncidentID: "inc-1",
		Events: []domain.CameraEvent{
			{EventType: "loitering", Confidence: 0.4, Severity: 5, Timestamp: time.Now()},
		},
	}
	plan := BuildPlan(inc, thresholds())
	require.Equal(t, domain.StepMonitor, plan.RecommendedNextStep)
	require.False(t, plan.RequiresHumanApproval)
	require.Contains(t, plan.ActionRiskFlags, domain.RiskLowConfidence)
}

func TestBuildPlanHighSeverityRequiresApproval(t *testing.T) {
	inc := domain.Incident{
		IncidentID: "inc-2",
		Events: []domain.CameraEvent{
			{EventType: "loitering", Confidence: 0.9, Severity: 5, Timestamp: time.Now(), ClipURL: "https://evidence/clip1"},
		},
	}
	plan := BuildPlan(inc, thresholds())
	require.Equal(t, domain.StepDispatchPendingReview, plan.RecommendedNextStep)
	require.True(t, plan.RequiresHumanApproval)
}

func TestBuildPlanNotifyWithNoEvidenceGetsPlaceholder(t *testing.T) {
	inc := domain.Incident{
		IncidentID: "inc-3",
		Events: []domain.CameraEvent{
			{EventType: "loitering", Confidence: 0.9, Severity: 2, Timestamp: time.Now()},
		},
	}
	plan := BuildPlan(inc, thresholds())
	require.Equal(t, domain.StepNotify, plan.RecommendedNextStep)
	require.Equal(t, []string{domain.NoClipAvailable}, plan.EvidenceRefs)
	require.Contains(t, plan.ActionRiskFlags, domain.RiskNoEvidence)
}

func TestValidatePlanRejectsAccusatoryLanguage(t *testing.T) {
	inc := domain.Incident{Events: []domain.CameraEvent{{EventType: "loitering", Confidence: 0.9, Severity: 2, Timestamp: time.Now()}}}
	plan := domain.IncidentPlan{
		Summary1Line:        "1 event(s): suspect detained by security (severity 2, confidence 0.90)",
		RecommendedNextStep: domain.StepNotify,
		EvidenceRefs:        []string{domain.NoClipAvailable},
	}
	result := ValidatePlan(plan, inc, thresholds())
	require.False(t, result.Passed)
	require.Contains(t, result.Violations, domain.ViolationAccusatoryLanguage)
}

func TestValidatePlanWatchlistRequiresHedgeLanguage(t *testing.T) {
	inc := domain.Incident{Events: []domain.CameraEvent{
		{EventType: "watchlist_hit", Confidence: 0.9, Severity: 5, Timestamp: time.Now(), Metadata: map[string]any{"watchlist_match": true}},
	}}
	plan := domain.IncidentPlan{
		Summary1Line:          "1 event(s): watchlist_hit (severity 5, confidence 0.90)",
		Severity:              5,
		Confidence:            0.9,
		RecommendedNextStep:   domain.StepDispatchPendingReview,
		RequiresHumanApproval: true,
		EvidenceRefs:          []string{domain.NoClipAvailable},
	}
	result := ValidatePlan(plan, inc, thresholds())
	require.False(t, result.Passed)
	require.Contains(t, result.Violations, domain.ViolationAccusatoryLanguage)

	plan.Summary1Line = "1 event(s): possible watchlist match, appears to require review (severity 5, confidence 0.90)"
	result = ValidatePlan(plan, inc, thresholds())
	require.True(t, result.Passed)
}

func TestBuildPlanWatchlistIncidentPassesValidation(t *testing.T) {
	inc := domain.Incident{
		IncidentID: "inc-5",
		Events: []domain.CameraEvent{
			{EventType: "watchlist_hit", Confidence: 0.9, Severity: 5, Timestamp: time.Now(),
				Metadata: map[string]any{"watchlist_match": true}, ClipURL: "https://evidence/clip5"},
		},
	}
	plan := BuildPlan(inc, thresholds())
	require.True(t, plan.RequiresHumanApproval)

	result := ValidatePlan(plan, inc, thresholds())
	require.True(t, result.Passed, "watchlist incident's templated summary must carry hedge language")
	require.Empty(t, result.Violations)
}

func TestCompileAlertFallsBackToNeutralBodyOnFailedValidation(t *testing.T) {
	plan := domain.IncidentPlan{Summary1Line: "suspect seen", RecommendedNextStep: domain.StepNotify}
	validation := domain.ValidationResult{Status: domain.ValidationFailed, Passed: false, Violations: []string{domain.ViolationAccusatoryLanguage}}

	alert := CompileAlert(context.Background(), plan, validation, nil, false)
	require.Equal(t, domain.NeutralReviewBody, alert.Body)
}

func TestCompileAlertAddsDisclaimerWhenRiskFlagsPresent(t *testing.T) {
	plan := domain.IncidentPlan{Summary1Line: "ok", ActionRiskFlags: []string{domain.RiskLowConfidence}}
	validation := domain.ValidationResult{Status: domain.ValidationPassed, Passed: true}

	alert := CompileAlert(context.Background(), plan, validation, nil, false)
	require.NotEmpty(t, alert.Disclaimer)
}
