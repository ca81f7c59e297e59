package repo

import (
	"context"
	"fmt"

	"github.com/kanwarsx-prog/opsHandover/internal/domain"
)

// BuildTree assembles a handover from flat child rows. Any child whose
// parent is missing from the set is an integrity fault and fails loudly
// rather than being silently dropped.
func BuildTree(h domain.Handover, domains []domain.Domain, checks []domain.Check, approvals []domain.Approval, evidence []domain.Evidence) (domain.Handover, error) {
	domainIdx := make(map[int64]int, len(domains))
	h.Domains = make([]domain.Domain, len(domains))
	for i, d := range domains {
		if d.HandoverID != h.ID {
			return h, fmt.Errorf("integrity: domain %d belongs to handover %d, not %d", d.ID, d.HandoverID, h.ID)
		}
		d.Checks = nil
		h.Domains[i] = d
		domainIdx[d.ID] = i
	}
	checkIdx := make(map[int64]*domain.Check, len(checks))
	for _, c := range checks {
		i, ok := domainIdx[c.DomainID]
		if !ok {
			return h, fmt.Errorf("integrity: check %d references missing domain %d", c.ID, c.DomainID)
		}
		c.Approvals = nil
		c.Evidence = nil
		h.Domains[i].Checks = append(h.Domains[i].Checks, c)
		checkIdx[c.ID] = &h.Domains[i].Checks[len(h.Domains[i].Checks)-1]
	}
	for _, a := range approvals {
		c, ok := checkIdx[a.CheckID]
		if !ok {
			return h, fmt.Errorf("integrity: approval %d references missing check %d", a.ID, a.CheckID)
		}
		c.Approvals = append(c.Approvals, a)
	}
	for _, ev := range evidence {
		c, ok := checkIdx[ev.CheckID]
		if !ok {
			return h, fmt.Errorf("integrity: evidence %d references missing check %d", ev.ID, ev.CheckID)
		}
		c.Evidence = append(c.Evidence, ev)
	}
	return h, nil
}

// HandoverTree loads a handover with its full subtree.
func (r Repo) HandoverTree(ctx context.Context, id int64) (domain.Handover, error) {
	h, err := r.GetHandover(ctx, id)
	if err != nil {
		return h, err
	}
	domains, err := r.ListDomains(ctx, id)
	if err != nil {
		return h, err
	}
	checks, err := r.ListChecksByHandover(ctx, id)
	if err != nil {
		return h, err
	}
	approvals, err := r.ListApprovalsByHandover(ctx, id)
	if err != nil {
		return h, err
	}
	evidence, err := r.ListEvidenceByHandover(ctx, id)
	if err != nil {
		return h, err
	}
	return BuildTree(h, domains, checks, approvals, evidence)
}

// ListHandoverTrees loads full subtrees for every handover matching the
// filters. Used by analytics, which needs check-level detail.
func (r Repo) ListHandoverTrees(ctx context.Context, f HandoverFilters) ([]domain.Handover, error) {
	flat, err := r.ListHandovers(ctx, f)
	if err != nil {
		return nil, err
	}
	trees := make([]domain.Handover, 0, len(flat))
	for _, h := range flat {
		tree, err := r.HandoverTree(ctx, h.ID)
		if err != nil {
			return nil, err
		}
		trees = append(trees, tree)
	}
	return trees, nil
}
