package readiness_test

import (
	"testing"

	"github.com/kanwarsx-prog/opsHandover/internal/domain"
	"github.com/kanwarsx-prog/opsHandover/internal/readiness"
)

func approval(id int64, decision, at string) domain.Approval {
	return domain.Approval{ID: id, Decision: decision, Comments: "reviewed", CreatedAt: at}
}

func TestApprovalStatusDerivation(t *testing.T) {
	cases := []struct {
		name             string
		approvals        []domain.Approval
		requiresApproval bool
		want             domain.ApprovalState
	}{
		{"not required", nil, false, domain.ApprovalNone},
		{"not required with history", []domain.Approval{approval(1, "approved", "2026-01-01T10:00:00Z")}, false, domain.ApprovalNone},
		{"required no history", nil, true, domain.ApprovalPending},
		{"single approval", []domain.Approval{approval(1, "approved", "2026-01-01T10:00:00Z")}, true, domain.ApprovalApproved},
		{"single rejection", []domain.Approval{approval(1, "rejected", "2026-01-01T10:00:00Z")}, true, domain.ApprovalRejected},
		{"latest decision wins", []domain.Approval{
			approval(1, "rejected", "2026-01-02T10:00:00Z"),
			approval(2, "approved", "2026-01-01T10:00:00Z"),
		}, true, domain.ApprovalRejected},
		{"re-approval after rejection", []domain.Approval{
			approval(1, "rejected", "2026-01-01T10:00:00Z"),
			approval(2, "approved", "2026-01-03T10:00:00Z"),
		}, true, domain.ApprovalApproved},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := readiness.ApprovalStatus(tc.approvals, tc.requiresApproval)
			if got != tc.want {
				t.Fatalf("ApprovalStatus = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLatestApprovalTieBreaksToLaterEntry(t *testing.T) {
	approvals := []domain.Approval{
		approval(1, "rejected", "2026-01-01T10:00:00Z"),
		approval(2, "approved", "2026-01-01T10:00:00Z"),
	}
	latest := readiness.LatestApproval(approvals)
	if latest == nil || latest.ID != 2 {
		t.Fatalf("expected later entry to win on equal timestamps, got %+v", latest)
	}
}

func TestLatestApprovalCorruptTimestamps(t *testing.T) {
	corrupt := []domain.Approval{
		approval(1, "approved", "not-a-timestamp"),
		approval(2, "rejected", "also bad"),
	}
	latest := readiness.LatestApproval(corrupt)
	if latest == nil || latest.ID != 2 {
		t.Fatalf("history with only corrupt timestamps should fall back to entry order, got %+v", latest)
	}
	if got := readiness.ApprovalStatus(corrupt, true); got != domain.ApprovalRejected {
		t.Fatalf("corrupt timestamps must not read as pending, got %q", got)
	}

	mixed := []domain.Approval{
		approval(3, "approved", "2026-01-01T10:00:00Z"),
		approval(4, "rejected", "garbage"),
	}
	latest = readiness.LatestApproval(mixed)
	if latest == nil || latest.ID != 3 {
		t.Fatalf("a dated entry should outrank later corrupt ones, got %+v", latest)
	}
}

func TestCanMarkReady(t *testing.T) {
	plain := domain.Check{Title: "Runbooks"}
	if !readiness.CanMarkReady(plain) {
		t.Fatalf("check without approval requirement should be markable")
	}
	gated := domain.Check{Title: "Security Review", RequiresApproval: true, ApprovalStatus: domain.ApprovalPending}
	if readiness.CanMarkReady(gated) {
		t.Fatalf("pending approval must block Ready")
	}
	gated.ApprovalStatus = domain.ApprovalRejected
	if readiness.CanMarkReady(gated) {
		t.Fatalf("rejected approval must block Ready")
	}
	gated.ApprovalStatus = domain.ApprovalApproved
	if !readiness.CanMarkReady(gated) {
		t.Fatalf("approved check should be markable")
	}
}

func TestCanDecideApproval(t *testing.T) {
	check := domain.Check{Owner: "sam", RequiresApproval: true}
	if !readiness.CanDecideApproval(check, domain.Actor{ID: "sam"}, nil) {
		t.Fatalf("owner should be able to decide")
	}
	if readiness.CanDecideApproval(check, domain.Actor{ID: "pat", Role: "engineer"}, nil) {
		t.Fatalf("non-owner without elevated role should not decide")
	}
	for _, role := range []string{"admin", "Audit", "COMPLIANCE", " security "} {
		if !readiness.CanDecideApproval(check, domain.Actor{ID: "pat", Role: role}, nil) {
			t.Fatalf("role %q should be elevated", role)
		}
	}
	open := domain.Check{Owner: "sam"}
	if readiness.CanDecideApproval(open, domain.Actor{ID: "sam", Role: "admin"}, nil) {
		t.Fatalf("checks without approval requirement accept no decisions")
	}
}

func TestCanDecideApprovalCustomRoles(t *testing.T) {
	check := domain.Check{Owner: "sam", RequiresApproval: true}
	custom := []string{"Director", "release-manager"}
	if !readiness.CanDecideApproval(check, domain.Actor{ID: "pat", Role: "director"}, custom) {
		t.Fatalf("configured role should be elevated")
	}
	if readiness.CanDecideApproval(check, domain.Actor{ID: "pat", Role: "admin"}, custom) {
		t.Fatalf("custom role list should replace the default set, not extend it")
	}
	if !readiness.CanDecideApproval(check, domain.Actor{ID: "sam", Role: "engineer"}, custom) {
		t.Fatalf("ownership should grant decision rights regardless of role list")
	}
}

func TestValidateApproval(t *testing.T) {
	if err := readiness.ValidateApproval("approved", "looks good"); err != nil {
		t.Fatalf("valid approval rejected: %v", err)
	}
	if err := readiness.ValidateApproval("maybe", "hm"); err == nil {
		t.Fatalf("unknown decision accepted")
	}
	if err := readiness.ValidateApproval("rejected", "   "); err == nil {
		t.Fatalf("blank comments accepted")
	}
	var ve readiness.ValidationError
	err := readiness.ValidateApproval("rejected", "")
	if !errorsAs(err, &ve) || ve.Field != "comments" {
		t.Fatalf("expected comments validation error, got %v", err)
	}
}

func errorsAs(err error, target *readiness.ValidationError) bool {
	ve, ok := err.(readiness.ValidationError)
	if ok {
		*target = ve
	}
	return ok
}
