// Package engine derives an IncidentPlan from an incident's events, runs it
// through the hard safety-validation rule chain, and compiles the neutral
// operator-facing alert. All three stages are pure functions of their
// inputs plus the current settings snapshot; the only side effect in the
// package is the optional LLM rewrite in alert.go.
package engine

import (
	"fmt"
	"sort"
	"strings"

	"alibi/internal/domain"
	"alibi/internal/platform/config"
)

// BuildPlan derives the deterministic recommendation for an incident, per
// spec §4.4's build_incident_plan.
func BuildPlan(inc domain.Incident, thresholds config.Thresholds) domain.IncidentPlan {
	severity := inc.MaxSeverity()
	confidence := inc.AvgConfidence()
	watchlist := inc.WatchlistMatchPresent()

	step := nextStep(confidence, severity, watchlist, thresholds)
	plan := domain.IncidentPlan{
		Summary1Line:          summaryLine(inc, severity, confidence),
		Severity:              severity,
		Confidence:            confidence,
		RecommendedNextStep:   step,
		RequiresHumanApproval: step == domain.StepDispatchPendingReview,
		EvidenceRefs:          inc.EvidenceRefs(),
	}
	plan.ActionRiskFlags = riskFlags(plan, thresholds, watchlist)

	if len(plan.EvidenceRefs) == 0 && (step == domain.StepNotify || step == domain.StepDispatchPendingReview) {
		plan.EvidenceRefs = append(plan.EvidenceRefs, domain.NoClipAvailable)
	}
	return plan
}

// nextStep applies the fail-fast, priority-ordered recommendation rules.
// Rule order matters: a low-confidence incident is always sent to monitor
// regardless of severity or watchlist hits.
func nextStep(confidence float64, severity int, watchlist bool, thresholds config.Thresholds) domain.NextStep {
	if confidence < thresholds.MinConfidenceForNotify {
		return domain.StepMonitor
	}
	if severity >= thresholds.HighSeverityThreshold || watchlist {
		return domain.StepDispatchPendingReview
	}
	return domain.StepNotify
}

func riskFlags(plan domain.IncidentPlan, thresholds config.Thresholds, watchlist bool) []string {
	var flags []string
	if plan.Confidence < thresholds.MinConfidenceForNotify {
		flags = append(flags, domain.RiskLowConfidence)
	}
	if plan.Severity >= thresholds.HighSeverityThreshold {
		flags = append(flags, domain.RiskHighSeverity)
	}
	if watchlist {
		flags = append(flags, domain.RiskWatchlistMatch)
	}
	if len(plan.EvidenceRefs) == 0 {
		flags = append(flags, domain.RiskNoEvidence)
	}
	return flags
}

// summaryLine renders the templated one-line summary, listing event types
// in descending frequency so "top_types" means something when an incident
// mixes several detector hits. Watchlist and plate-mismatch incidents get a
// hedged phrasing ("possible watchlist match, unconfirmed", "possible plate
// mismatch, unverified")
// instead of a flat assertion: ValidatePlan's accusatory-language gate
// requires hedge language whenever the underlying claim hasn't been
// confirmed by a human, and the template is the only place that claim is
// ever phrased.
func summaryLine(inc domain.Incident, severity int, confidence float64) string {
	types := topEventTypes(inc)
	base := fmt.Sprintf("%d event(s): %s (severity %d, confidence %.2f)",
		len(inc.Events), strings.Join(types, ", "), severity, confidence)

	var hedges []string
	if inc.WatchlistMatchPresent() {
		hedges = append(hedges, "possible watchlist match, unconfirmed")
	}
	for _, e := range inc.Events {
		if e.PlateMismatch() {
			hedges = append(hedges, "possible plate mismatch, unverified")
			break
		}
	}
	if len(hedges) == 0 {
		return base
	}
	return base + ", " + strings.Join(hedges, "; ")
}

func topEventTypes(inc domain.Incident) []string {
	counts := map[string]int{}
	order := inc.EventTypes()
	for _, e := range inc.Events {
		counts[e.EventType]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	return order
}
