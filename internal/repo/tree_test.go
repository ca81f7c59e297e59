package repo

import (
	"strings"
	"testing"

	"github.com/kanwarsx-prog/opsHandover/internal/domain"
)

func TestBuildTree(t *testing.T) {
	h := domain.Handover{ID: 1, Name: "Payments cutover"}
	domains := []domain.Domain{
		{ID: 10, HandoverID: 1, Title: "Security", SortOrder: 0},
		{ID: 11, HandoverID: 1, Title: "Operations", SortOrder: 1},
	}
	checks := []domain.Check{
		{ID: 100, DomainID: 10, Title: "Pen test"},
		{ID: 101, DomainID: 10, Title: "Access review"},
		{ID: 102, DomainID: 11, Title: "Runbooks"},
	}
	approvals := []domain.Approval{{ID: 1000, CheckID: 100, Approver: "sam", Decision: "approved", Comments: "ok"}}
	evidence := []domain.Evidence{{ID: 2000, CheckID: 102, Title: "runbook link", URL: "https://wiki/runbooks", Type: "link"}}

	tree, err := BuildTree(h, domains, checks, approvals, evidence)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	if len(tree.Domains) != 2 {
		t.Fatalf("expected 2 domains, got %d", len(tree.Domains))
	}
	if len(tree.Domains[0].Checks) != 2 || len(tree.Domains[1].Checks) != 1 {
		t.Fatalf("checks misplaced: %+v", tree.Domains)
	}
	if len(tree.Domains[0].Checks[0].Approvals) != 1 {
		t.Fatalf("approval not attached")
	}
	if len(tree.Domains[1].Checks[0].Evidence) != 1 {
		t.Fatalf("evidence not attached")
	}
}

func TestBuildTreeFailsOnOrphans(t *testing.T) {
	h := domain.Handover{ID: 1}
	domains := []domain.Domain{{ID: 10, HandoverID: 1, Title: "Security"}}

	_, err := BuildTree(h, domains, []domain.Check{{ID: 100, DomainID: 99}}, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "integrity") {
		t.Fatalf("expected integrity error for orphan check, got %v", err)
	}

	checks := []domain.Check{{ID: 100, DomainID: 10}}
	_, err = BuildTree(h, domains, checks, []domain.Approval{{ID: 1, CheckID: 555}}, nil)
	if err == nil || !strings.Contains(err.Error(), "approval") {
		t.Fatalf("expected integrity error for orphan approval, got %v", err)
	}

	_, err = BuildTree(h, domains, checks, nil, []domain.Evidence{{ID: 1, CheckID: 555}})
	if err == nil || !strings.Contains(err.Error(), "evidence") {
		t.Fatalf("expected integrity error for orphan evidence, got %v", err)
	}

	_, err = BuildTree(h, []domain.Domain{{ID: 10, HandoverID: 7}}, nil, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "domain") {
		t.Fatalf("expected integrity error for foreign domain, got %v", err)
	}
}
