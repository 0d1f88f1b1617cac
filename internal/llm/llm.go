// Package llm wraps the optional Anthropic-backed alert-body rewriter
// behind a circuit breaker, so a slow or failing provider degrades to the
// engine's deterministic template instead of blocking ingestion.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"
)

// ErrUnavailable is returned whenever the rewrite could not be attempted:
// the breaker is open, the call timed out, or no rewriter is configured.
// Callers fall back to the deterministic template on this error.
var ErrUnavailable = errors.New("llm_unavailable")

// MessagesClient captures the subset of the Anthropic SDK used here, so
// tests can substitute a fake without a network dependency.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Rewriter rewrites a templated alert body into operator-facing prose,
// guarded by a circuit breaker so repeated failures stop issuing calls for
// a cooldown period.
type Rewriter struct {
	client  MessagesClient
	model   string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
}

// New builds a Rewriter. client may be nil, in which case Rewrite always
// returns ErrUnavailable (the "llm.enabled=false" path).
func New(client MessagesClient, model string, timeout time.Duration) *Rewriter {
	settings := gobreaker.Settings{
		Name:        "alibi-llm-rewrite",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &Rewriter{client: client, model: model, timeout: timeout, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Rewrite asks the model to rephrase body into operator-neutral prose
// summarizing summary1line. Callers must re-validate the result against
// the same accusatory-language rules as the template output; Rewrite
// itself only handles availability, not content safety.
func (r *Rewriter) Rewrite(ctx context.Context, summary1line, templateBody string) (string, error) {
	if r == nil || r.client == nil {
		return "", ErrUnavailable
	}

	result, err := r.breaker.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		msg, err := r.client.New(callCtx, sdk.MessageNewParams{
			Model:     sdk.Model(r.model),
			MaxTokens: 256,
			Messages: []sdk.MessageParam{
				sdk.NewUserMessage(sdk.NewTextBlock(rewritePrompt(summary1line, templateBody))),
			},
		})
		if err != nil {
			return "", err
		}
		return extractText(msg), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return result.(string), nil
}

func rewritePrompt(summary, templateBody string) string {
	return "Rewrite the following incident alert body in neutral, non-accusatory operator language. " +
		"Never assert guilt, identity, or a confirmed crime; use hedging language like \"possible\" or \"appears\" " +
		"for any hotlist or mismatch claim. Keep it under three sentences.\n\n" +
		"Summary: " + summary + "\n" +
		"Template body: " + templateBody
}

func extractText(msg *sdk.Message) string {
	var out string
	for _, block := range msg.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out
}
