// Package readiness holds the pure rules of the handover domain: the
// approval state machine, the readiness aggregator, the go-live decision
// gate, and the presentation helpers. Nothing here touches storage or HTTP.
package readiness

import (
	"strings"
	"time"

	"github.com/kanwarsx-prog/opsHandover/internal/domain"
)

// ElevatedRoles is the default set of roles that may approve any check
// regardless of ownership. Workspaces override it via config.
var ElevatedRoles = []string{"admin", "audit", "compliance", "security"}

// LatestApproval returns the approval with the newest timestamp, or nil if
// there are none. Ties resolve to the later entry so replayed history stays
// deterministic. Entries whose timestamps fail to parse rank below dated
// ones and fall back to entry order among themselves; a history of only
// corrupt timestamps still yields its last entry rather than none.
func LatestApproval(approvals []domain.Approval) *domain.Approval {
	var latest *domain.Approval
	var latestTS time.Time
	var latestDated bool
	for i := range approvals {
		ts, err := time.Parse(time.RFC3339, approvals[i].CreatedAt)
		dated := err == nil
		if latest != nil {
			if dated && latestDated && ts.Before(latestTS) {
				continue
			}
			if !dated && latestDated {
				continue
			}
		}
		latest = &approvals[i]
		latestTS = ts
		latestDated = dated
	}
	return latest
}

// ApprovalStatus derives a check's approval state from its full approval
// history. Checks that do not require approval have no state at all.
func ApprovalStatus(approvals []domain.Approval, requiresApproval bool) domain.ApprovalState {
	if !requiresApproval {
		return domain.ApprovalNone
	}
	latest := LatestApproval(approvals)
	if latest == nil {
		return domain.ApprovalPending
	}
	if latest.Decision == "approved" {
		return domain.ApprovalApproved
	}
	return domain.ApprovalRejected
}

// CanMarkReady reports whether a check may be moved to Ready. A check that
// requires approval is only eligible once approved; pending and rejected
// both block.
func CanMarkReady(c domain.Check) bool {
	if !c.RequiresApproval {
		return true
	}
	return c.ApprovalStatus == domain.ApprovalApproved
}

// CanDecideApproval reports whether the actor may record an approval
// decision on the check: the check owner, or anyone holding one of the
// elevated roles (matched case-insensitively). An empty elevated list
// falls back to ElevatedRoles.
func CanDecideApproval(c domain.Check, actor domain.Actor, elevated []string) bool {
	if !c.RequiresApproval {
		return false
	}
	if c.Owner != "" && c.Owner == actor.ID {
		return true
	}
	if len(elevated) == 0 {
		elevated = ElevatedRoles
	}
	role := strings.ToLower(strings.TrimSpace(actor.Role))
	for _, r := range elevated {
		if role == strings.ToLower(strings.TrimSpace(r)) {
			return true
		}
	}
	return false
}

// ValidateApproval checks an approval submission before it is recorded.
// Comments are mandatory for both outcomes so the audit trail carries a
// rationale.
func ValidateApproval(decision, comments string) error {
	if decision != "approved" && decision != "rejected" {
		return ValidationError{Field: "decision", Reason: "must be approved or rejected"}
	}
	if strings.TrimSpace(comments) == "" {
		return ValidationError{Field: "comments", Reason: "required"}
	}
	return nil
}
