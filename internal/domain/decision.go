package domain

import (
	"fmt"
	"time"
)

// DismissReason is required whenever ActionTaken is ActionDismiss.
type DismissReason string

const (
	DismissFalsePositiveMotion DismissReason = "false_positive_motion"
	DismissNormalBehavior      DismissReason = "normal_behavior"
	DismissCameraFault         DismissReason = "camera_fault"
	DismissWeather             DismissReason = "weather"
	DismissUnknown             DismissReason = "unknown"
)

// Valid reports whether r is one of the known dismiss reasons.
func (r DismissReason) Valid() bool {
	switch r {
	case DismissFalsePositiveMotion, DismissNormalBehavior, DismissCameraFault, DismissWeather, DismissUnknown:
		return true
	default:
		return false
	}
}

// Decision is an operator or supervisor's recorded triage action against an
// incident.
type Decision struct {
	IncidentID       string         `json:"incident_id"`
	DecisionTS       time.Time      `json:"decision_ts"`
	ActionTaken      OperatorAction `json:"action_taken"`
	OperatorUsername string         `json:"operator_username"`
	OperatorNotes    string         `json:"operator_notes,omitempty"`
	WasTruePositive  *bool          `json:"was_true_positive,omitempty"`
	DismissReason    DismissReason  `json:"dismiss_reason,omitempty"`
}

// Validate enforces the dismiss_reason-required-on-dismiss rule from
// spec §6.1. A missing/invalid dismiss_reason returns 422 (ErrUnprocessable),
// matching the dismiss-without-reason scenario in spec §8.
func (d Decision) Validate() error {
	if d.ActionTaken == ActionDismiss && !d.DismissReason.Valid() {
		return fmt.Errorf("%w: dismiss_reason is required when action_taken is dismissed", ErrUnprocessable)
	}
	return nil
}
