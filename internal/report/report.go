// Package report builds the shift report from spec §4.10: scan incidents
// and decisions in a time window, compute a fixed KPI set, and render a
// deterministic narrative optionally passed through the engine's LLM
// rewrite gate.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"alibi/internal/domain"
	"alibi/internal/engine"
	"alibi/internal/platform/config"
)

// Store is the read surface a shift report needs.
type Store interface {
	ListIncidents() []domain.Incident
	ListDecisions() ([]domain.Decision, error)
	GetIncident(id string) (domain.Incident, *domain.IncidentMetadata, error)
}

// CameraCount pairs a camera or zone identifier with its incident count,
// for the top-N breakdowns.
type CameraCount struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// KPIs is the fixed metric set spec §4.10 requires.
type KPIs struct {
	TotalIncidents         int            `json:"total_incidents"`
	DismissedRate          float64        `json:"dismissed_rate"`
	EscalationRate         float64        `json:"escalation_rate"`
	ConfirmedRate          float64        `json:"confirmed_rate"`
	AvgTimeToFirstDecision float64        `json:"avg_time_to_first_decision_seconds"`
	TopCameras             []CameraCount  `json:"top_cameras"`
	TopZones               []CameraCount  `json:"top_zones"`
	RiskFlagBreakdown      map[string]int `json:"risk_flag_breakdown"`
}

// Report is the full shift report response body.
type Report struct {
	StartTS   time.Time `json:"start_ts"`
	EndTS     time.Time `json:"end_ts"`
	KPIs      KPIs      `json:"kpis"`
	Narrative string    `json:"narrative"`
}

// Generator produces Report values from the log store.
type Generator struct {
	store    Store
	settings *config.Store
	rewriter engine.Rewriter
}

// New builds a Generator. rewriter may be nil; the narrative then never
// leaves its deterministic templated form.
func New(store Store, settings *config.Store, rewriter engine.Rewriter) *Generator {
	return &Generator{store: store, settings: settings, rewriter: rewriter}
}

const topN = 5

// Generate scans every incident whose UpdatedTS falls in [startTS, endTS)
// and every decision whose DecisionTS does likewise, and returns the
// aggregate KPIs plus a narrative summary.
func (g *Generator) Generate(ctx context.Context, startTS, endTS time.Time) (any, error) {
	allIncidents := g.store.ListIncidents()
	allDecisions, err := g.store.ListDecisions()
	if err != nil {
		return nil, err
	}

	var incidents []domain.Incident
	for _, inc := range allIncidents {
		if inInclusiveRange(inc.UpdatedTS, startTS, endTS) {
			incidents = append(incidents, inc)
		}
	}
	var decisions []domain.Decision
	for _, d := range allDecisions {
		if inInclusiveRange(d.DecisionTS, startTS, endTS) {
			decisions = append(decisions, d)
		}
	}

	kpis := computeKPIs(incidents, decisions)
	kpis.RiskFlagBreakdown = g.riskFlagBreakdown(incidents)
	narrative := templateNarrative(startTS, endTS, kpis)

	doc := g.settings.Get()
	narrative = engine.RewriteIfSafe(ctx, g.rewriter, doc.LLM.Enabled, summarySentence(kpis), narrative)

	return Report{StartTS: startTS, EndTS: endTS, KPIs: kpis, Narrative: narrative}, nil
}

func inInclusiveRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

func computeKPIs(incidents []domain.Incident, decisions []domain.Decision) KPIs {
	kpis := KPIs{
		TotalIncidents:    len(incidents),
		RiskFlagBreakdown: map[string]int{},
	}
	if len(incidents) == 0 {
		return kpis
	}

	var dismissed, escalated, confirmed int
	firstDecisionByIncident := map[string]domain.Decision{}
	for _, d := range decisions {
		if existing, ok := firstDecisionByIncident[d.IncidentID]; !ok || d.DecisionTS.Before(existing.DecisionTS) {
			firstDecisionByIncident[d.IncidentID] = d
		}
		switch d.ActionTaken {
		case domain.ActionDismiss:
			dismissed++
		case domain.ActionEscalate:
			escalated++
		case domain.ActionConfirm:
			confirmed++
		}
	}
	total := float64(len(incidents))
	kpis.DismissedRate = float64(dismissed) / total
	kpis.EscalationRate = float64(escalated) / total
	kpis.ConfirmedRate = float64(confirmed) / total

	cameraCounts := map[string]int{}
	zoneCounts := map[string]int{}
	var decisionLatencies []float64
	for _, inc := range incidents {
		if len(inc.Events) > 0 {
			cameraCounts[inc.Events[0].CameraID]++
			zoneCounts[inc.Events[0].ZoneID]++
		}
		if first, ok := firstDecisionByIncident[inc.IncidentID]; ok {
			decisionLatencies = append(decisionLatencies, first.DecisionTS.Sub(inc.CreatedTS).Seconds())
		}
	}
	if len(decisionLatencies) > 0 {
		sum := 0.0
		for _, v := range decisionLatencies {
			sum += v
		}
		kpis.AvgTimeToFirstDecision = sum / float64(len(decisionLatencies))
	}

	kpis.TopCameras = topCounts(cameraCounts, topN)
	kpis.TopZones = topCounts(zoneCounts, topN)

	return kpis
}

// riskFlagBreakdown counts, across the reported incidents, how many
// carried each of the engine's action risk flags on their most recent plan.
func (g *Generator) riskFlagBreakdown(incidents []domain.Incident) map[string]int {
	out := map[string]int{}
	for _, inc := range incidents {
		_, metadata, err := g.store.GetIncident(inc.IncidentID)
		if err != nil || metadata == nil {
			continue
		}
		for _, flag := range metadata.Plan.ActionRiskFlags {
			out[flag]++
		}
	}
	return out
}

func topCounts(counts map[string]int, n int) []CameraCount {
	out := make([]CameraCount, 0, len(counts))
	for id, count := range counts {
		out = append(out, CameraCount{ID: id, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func templateNarrative(startTS, endTS time.Time, kpis KPIs) string {
	return fmt.Sprintf(
		"Shift from %s to %s recorded %d incidents. %.0f%% dismissed, %.0f%% escalated, %.0f%% confirmed. "+
			"Average time to first decision was %.0f seconds.",
		startTS.Format(time.RFC3339), endTS.Format(time.RFC3339), kpis.TotalIncidents,
		kpis.DismissedRate*100, kpis.EscalationRate*100, kpis.ConfirmedRate*100,
		kpis.AvgTimeToFirstDecision,
	)
}

func summarySentence(kpis KPIs) string {
	return fmt.Sprintf("%d incidents, %.0f%% dismissed, %.0f%% escalated", kpis.TotalIncidents, kpis.DismissedRate*100, kpis.EscalationRate*100)
}
