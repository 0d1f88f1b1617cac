package engine

import (
	"context"
	"fmt"

	"alibi/internal/domain"
)

// Rewriter is the optional LLM rewrite step. Satisfied by *llm.Rewriter;
// kept as an interface here so the engine package never imports the
// Anthropic SDK directly.
type Rewriter interface {
	Rewrite(ctx context.Context, summary1line, templateBody string) (string, error)
}

var defaultOperatorActions = []domain.OperatorAction{
	domain.ActionConfirm, domain.ActionDismiss, domain.ActionEscalate, domain.ActionClose,
}

// CompileAlert produces the neutral operator-facing alert for a plan. When
// rewriter is non-nil and enabled is true, a second LLM pass may replace
// the templated body; the rewrite is re-validated against the same
// accusatory-language rules and discarded on any hit, per spec §4.4.
func CompileAlert(ctx context.Context, plan domain.IncidentPlan, validation domain.ValidationResult, rewriter Rewriter, llmEnabled bool) domain.AlertMessage {
	alert := domain.AlertMessage{
		Title:           templateTitle(plan),
		Body:            templateBody(plan),
		OperatorActions: operatorActionsFor(plan),
		EvidenceRefs:    plan.EvidenceRefs,
	}
	if len(plan.ActionRiskFlags) > 0 {
		alert.Disclaimer = "This is an automated preliminary assessment. All claims require human verification before action."
	}

	if !validation.Passed {
		alert.Body = domain.NeutralReviewBody
		alert.OperatorActions = []domain.OperatorAction{domain.ActionConfirm, domain.ActionDismiss, domain.ActionEscalate}
		return alert
	}

	alert.Body = RewriteIfSafe(ctx, rewriter, llmEnabled, plan.Summary1Line, alert.Body)
	return alert
}

// RewriteIfSafe asks rewriter to rephrase body in light of summary, and
// returns the rewrite only if it passes the same accusatory-language gate
// as every other operator-facing string; otherwise it returns body
// unchanged. This is the one gate every LLM-touched string in the system
// passes through, whether it's an alert body or a shift report narrative.
func RewriteIfSafe(ctx context.Context, rewriter Rewriter, enabled bool, summary, body string) string {
	if !enabled || rewriter == nil {
		return body
	}
	rewritten, err := rewriter.Rewrite(ctx, summary, body)
	if err != nil {
		return body
	}
	if _, hit := containsForbiddenLanguage(rewritten); hit {
		return body
	}
	return rewritten
}

func templateTitle(plan domain.IncidentPlan) string {
	return fmt.Sprintf("Incident review: %s", plan.RecommendedNextStep)
}

func templateBody(plan domain.IncidentPlan) string {
	return plan.Summary1Line
}

func operatorActionsFor(plan domain.IncidentPlan) []domain.OperatorAction {
	actions := append([]domain.OperatorAction{}, defaultOperatorActions...)
	if plan.RequiresHumanApproval {
		actions = append(actions, domain.ActionApprove)
	}
	return actions
}
