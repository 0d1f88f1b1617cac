package engine

import (
	"regexp"
	"strings"

	"alibi/internal/domain"
	"alibi/internal/platform/config"
)

// forbiddenPatterns are accusatory or pre-judgment phrases that may never
// appear in a plan summary or a compiled alert. Matched case-insensitively
// on word boundaries so "stolen" inside "confirmed stolen" still trips but
// "installed" does not false-positive on a "is stolen" substring check.
var forbiddenPatterns = compilePatterns([]string{
	`suspect`, `criminal`, `perpetrator`, `intruder`, `identified as`,
	`confirmed stolen`, `is stolen`, `will be cited`, `guilty`,
	`impound`, `seize`, `arrest`, `fraud`, `crime`, `illegal`,
})

// hedgeTokens: for watchlist/mismatch events, at least one of these must
// appear alongside the required "mismatch" token for mismatch events.
var hedgeTokens = []string{"possible", "potential", "appears", "may be", "verify", "review", "confirm"}

func compilePatterns(words []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		out = append(out, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(w)+`\b`))
	}
	return out
}

func containsForbiddenLanguage(text string) (string, bool) {
	for _, re := range forbiddenPatterns {
		if re.MatchString(text) {
			return re.String(), true
		}
	}
	return "", false
}

func containsHedgeToken(text string) bool {
	lower := strings.ToLower(text)
	for _, tok := range hedgeTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// ValidatePlan runs the hard safety-rule chain over a plan, in spec §4.4's
// documented priority: accusatory language first (compliance-critical),
// then the gates that govern whether an incident may be auto-routed at
// all. Any violation fails the whole plan; warnings never block.
func ValidatePlan(plan domain.IncidentPlan, inc domain.Incident, thresholds config.Thresholds) domain.ValidationResult {
	var violations, warnings []string

	if _, hit := containsForbiddenLanguage(plan.Summary1Line); hit {
		violations = append(violations, domain.ViolationAccusatoryLanguage)
	}
	if inc.WatchlistMatchPresent() && !containsHedgeToken(plan.Summary1Line) {
		violations = append(violations, domain.ViolationAccusatoryLanguage)
	}
	for _, e := range inc.Events {
		if e.PlateMismatch() && (!strings.Contains(strings.ToLower(plan.Summary1Line), "mismatch") || !containsHedgeToken(plan.Summary1Line)) {
			violations = append(violations, domain.ViolationAccusatoryLanguage)
			break
		}
	}

	if plan.Confidence < thresholds.MinConfidenceForNotify && plan.RecommendedNextStep != domain.StepMonitor {
		violations = append(violations, domain.ViolationLowConfidenceGate)
	}

	highRisk := plan.Severity >= thresholds.HighSeverityThreshold || inc.WatchlistMatchPresent()
	if highRisk && (!plan.RequiresHumanApproval || plan.RecommendedNextStep == domain.StepNotify) {
		violations = append(violations, domain.ViolationHighRiskApproval)
	}

	if (plan.RecommendedNextStep == domain.StepNotify || plan.RecommendedNextStep == domain.StepDispatchPendingReview) && len(plan.EvidenceRefs) == 0 {
		violations = append(violations, domain.ViolationEvidenceGate)
	}

	if plan.Confidence >= thresholds.MinConfidenceForNotify && plan.Confidence < thresholds.MinConfidenceForNotify+0.05 {
		warnings = append(warnings, domain.WarningNearThreshold)
	}
	if len(inc.EventTypes()) > 2 {
		warnings = append(warnings, domain.WarningUnusualEventMix)
	}

	result := domain.ValidationResult{
		Violations: dedup(violations),
		Warnings:   dedup(warnings),
	}
	if len(result.Violations) > 0 {
		result.Status = domain.ValidationFailed
		result.Passed = false
	} else if len(result.Warnings) > 0 {
		result.Status = domain.ValidationWarning
		result.Passed = true
	} else {
		result.Status = domain.ValidationPassed
		result.Passed = true
	}
	return result
}

func dedup(in []string) []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
