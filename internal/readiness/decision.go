package readiness

import (
	"fmt"
	"strings"

	"github.com/kanwarsx-prog/opsHandover/internal/domain"
)

// GoLiveDecision is the outcome recorded at a go-live review.
type GoLiveDecision string

const (
	GoLive     GoLiveDecision = "GO_LIVE"
	GoLiveRisk GoLiveDecision = "GO_LIVE_RISK"
	NotReady   GoLiveDecision = "NOT_READY"
)

// DecisionOption describes one selectable outcome and what it demands.
type DecisionOption struct {
	Decision             GoLiveDecision `json:"decision"`
	Selectable           bool           `json:"selectable"`
	Reason               string         `json:"reason,omitempty"`
	NeedsJustification   bool           `json:"needs_justification"`
	NeedsAcknowledgement bool           `json:"needs_acknowledgement"`
}

// DecisionInput is a go-live decision submission.
type DecisionInput struct {
	Decision         GoLiveDecision
	Justification    string
	RiskAcknowledged bool
}

// DecisionOptions returns the three outcomes with their gates applied to
// the handover's current state. An unconditional GO_LIVE is only offered
// when no check is blocking.
func DecisionOptions(h domain.Handover) []DecisionOption {
	s := Signals(h)
	opts := []DecisionOption{
		{Decision: GoLive, Selectable: true},
		{Decision: GoLiveRisk, Selectable: true, NeedsJustification: true, NeedsAcknowledgement: true},
		{Decision: NotReady, Selectable: true, NeedsJustification: true},
	}
	if s.Blockers > 0 {
		opts[0].Selectable = false
		opts[0].Reason = fmt.Sprintf("%d blocking checks must be resolved", s.Blockers)
	}
	return opts
}

// ValidateDecision enforces the decision gates before a record is written.
func ValidateDecision(h domain.Handover, in DecisionInput) error {
	switch in.Decision {
	case GoLive:
		if s := Signals(h); s.Blockers > 0 {
			return PreconditionError{
				Guard:  "go-live gate",
				Reason: fmt.Sprintf("%d blocking checks must be resolved", s.Blockers),
			}
		}
	case GoLiveRisk:
		if strings.TrimSpace(in.Justification) == "" {
			return ValidationError{Field: "justification", Reason: "required for GO_LIVE_RISK"}
		}
		if !in.RiskAcknowledged {
			return ValidationError{Field: "risk_acknowledged", Reason: "must be true for GO_LIVE_RISK"}
		}
	case NotReady:
		if strings.TrimSpace(in.Justification) == "" {
			return ValidationError{Field: "justification", Reason: "required for NOT_READY"}
		}
	default:
		return ValidationError{Field: "decision", Reason: "must be GO_LIVE, GO_LIVE_RISK or NOT_READY"}
	}
	return nil
}

// StatusFor maps a recorded decision to the handover status it imposes.
func StatusFor(d GoLiveDecision) domain.Status {
	switch d {
	case GoLive:
		return domain.StatusReady
	case GoLiveRisk:
		return domain.StatusAtRisk
	default:
		return domain.StatusNotReady
	}
}
