package readiness_test

import (
	"testing"

	"github.com/kanwarsx-prog/opsHandover/internal/domain"
	"github.com/kanwarsx-prog/opsHandover/internal/readiness"
)

func handoverWith(statuses ...domain.Status) domain.Handover {
	var checks []domain.Check
	for _, s := range statuses {
		checks = append(checks, domain.Check{Status: s})
	}
	return domain.Handover{Domains: []domain.Domain{{Checks: checks}}}
}

func TestSignalsAndGapCount(t *testing.T) {
	h := handoverWith(domain.StatusReady, domain.StatusNotReady, domain.StatusAtRisk, domain.StatusNotReady)
	s := readiness.Signals(h)
	if s.Blockers != 2 || s.Risks != 1 || s.Ready != 1 || s.Total != 4 {
		t.Fatalf("unexpected signals %+v", s)
	}
	if got := readiness.GapCount(h); got != 3 {
		t.Fatalf("GapCount = %d, want 3", got)
	}
}

func TestScore(t *testing.T) {
	if got := readiness.Score(domain.Handover{}); got != 0 {
		t.Fatalf("empty handover score = %d, want 0", got)
	}
	h := handoverWith(domain.StatusReady, domain.StatusReady, domain.StatusNotReady)
	if got := readiness.Score(h); got != 67 {
		t.Fatalf("score = %d, want 67", got)
	}
	// A Ready check awaiting approval does not count.
	gated := domain.Handover{Domains: []domain.Domain{{Checks: []domain.Check{
		{Status: domain.StatusReady, RequiresApproval: true, ApprovalStatus: domain.ApprovalPending},
		{Status: domain.StatusReady},
	}}}}
	if got := readiness.Score(gated); got != 50 {
		t.Fatalf("score with unapproved check = %d, want 50", got)
	}
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name string
		h    domain.Handover
		want domain.Status
	}{
		{"empty", domain.Handover{}, domain.StatusNotReady},
		{"blocker wins", handoverWith(domain.StatusReady, domain.StatusAtRisk, domain.StatusNotReady), domain.StatusNotReady},
		{"risk without blockers", handoverWith(domain.StatusReady, domain.StatusAtRisk), domain.StatusAtRisk},
		{"all ready", handoverWith(domain.StatusReady, domain.StatusReady), domain.StatusReady},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := readiness.DeriveStatus(tc.h); got != tc.want {
				t.Fatalf("DeriveStatus = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSummarizeRiskPrecedence(t *testing.T) {
	cases := []struct {
		name    string
		gaps    int
		status  domain.Status
		message string
		tone    readiness.Tone
	}{
		{"gaps beat status", 3, domain.StatusReady, "3 critical gaps unresolved", readiness.ToneWarning},
		{"blocked", 0, domain.StatusNotReady, "go-live blocked by policy condition", readiness.ToneDanger},
		{"conditional", 0, domain.StatusAtRisk, "risky go-live (conditional approval)", readiness.ToneWarning},
		{"all clear", 0, domain.StatusReady, "all critical checks complete", readiness.ToneSuccess},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := readiness.SummarizeRisk(tc.gaps, tc.status)
			if got.Message != tc.message || got.Tone != tc.tone {
				t.Fatalf("SummarizeRisk(%d, %q) = %+v", tc.gaps, tc.status, got)
			}
		})
	}
	// Every combination must yield exactly one of the four messages.
	for gaps := 0; gaps <= 2; gaps++ {
		for _, status := range []domain.Status{domain.StatusReady, domain.StatusAtRisk, domain.StatusNotReady} {
			if readiness.SummarizeRisk(gaps, status).Message == "" {
				t.Fatalf("no message for gaps=%d status=%q", gaps, status)
			}
		}
	}
}

func TestSummarize(t *testing.T) {
	handovers := []domain.Handover{
		{Status: domain.StatusReady, Type: "cloud", Score: 100, Domains: []domain.Domain{{Checks: []domain.Check{
			{Status: domain.StatusReady}, {Status: domain.StatusReady},
		}}}},
		{Status: domain.StatusNotReady, Type: "cloud", Score: 40, Domains: []domain.Domain{{Checks: []domain.Check{
			{Status: domain.StatusNotReady}, {Status: domain.StatusAtRisk},
		}}}},
		{Status: domain.StatusAtRisk, Type: "product", Score: 75},
	}
	s := readiness.Summarize(handovers)
	if s.TotalHandovers != 3 {
		t.Fatalf("total = %d", s.TotalHandovers)
	}
	if s.AverageScore != 72 {
		t.Fatalf("average score = %d, want 72", s.AverageScore)
	}
	if s.ReadyPercent != 33.3 {
		t.Fatalf("ready percent = %v, want 33.3", s.ReadyPercent)
	}
	if s.TotalChecks != 4 || s.ChecksByStatus[domain.StatusReady] != 2 {
		t.Fatalf("check counts wrong: %+v", s)
	}
	if s.ByType["cloud"] != 2 || s.ByType["product"] != 1 {
		t.Fatalf("type counts wrong: %+v", s.ByType)
	}
	empty := readiness.Summarize(nil)
	if empty.AverageScore != 0 || empty.ReadyPercent != 0 {
		t.Fatalf("empty summary should be zeroed: %+v", empty)
	}
}

func TestScoreHistogramBoundaries(t *testing.T) {
	var handovers []domain.Handover
	for _, score := range []int{0, 20, 21, 40, 41, 60, 61, 80, 81, 100} {
		handovers = append(handovers, domain.Handover{Score: score})
	}
	buckets := readiness.ScoreHistogram(handovers)
	if len(buckets) != 5 {
		t.Fatalf("expected 5 buckets, got %d", len(buckets))
	}
	for i, b := range buckets {
		if b.Count != 2 {
			t.Fatalf("bucket %d (%s) count = %d, want 2", i, b.Range, b.Count)
		}
	}
}

func TestMonthlyTrend(t *testing.T) {
	handovers := []domain.Handover{
		{Status: domain.StatusReady, CreatedAt: "2026-03-15T10:00:00Z"},
		{Status: domain.StatusNotReady, CreatedAt: "2026-01-02T10:00:00Z"},
		{Status: domain.StatusAtRisk, CreatedAt: "2026-01-20T10:00:00Z"},
		{Status: domain.StatusReady, CreatedAt: "not-a-date"},
	}
	points := readiness.MonthlyTrend(handovers)
	if len(points) != 2 {
		t.Fatalf("expected 2 months, got %d", len(points))
	}
	if points[0].Month != "Jan 2026" || points[0].Total != 2 || points[0].AtRisk != 1 || points[0].NotReady != 1 {
		t.Fatalf("unexpected first point %+v", points[0])
	}
	if points[1].Month != "Mar 2026" || points[1].Ready != 1 {
		t.Fatalf("unexpected second point %+v", points[1])
	}
}
