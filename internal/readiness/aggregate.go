package readiness

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kanwarsx-prog/opsHandover/internal/domain"
)

// DomainSignal is the per-domain rollup of check states.
type DomainSignal struct {
	Blockers int `json:"blockers"`
	Risks    int `json:"risks"`
	Ready    int `json:"ready"`
	Total    int `json:"total"`
}

// SignalFor counts a domain's checks by state. Blockers are Not Ready
// checks, risks are At Risk checks.
func SignalFor(d domain.Domain) DomainSignal {
	var s DomainSignal
	for _, c := range d.Checks {
		s.Total++
		switch c.Status {
		case domain.StatusNotReady:
			s.Blockers++
		case domain.StatusAtRisk:
			s.Risks++
		case domain.StatusReady:
			s.Ready++
		}
	}
	return s
}

// Signals sums DomainSignal over every domain of a handover.
func Signals(h domain.Handover) DomainSignal {
	var total DomainSignal
	for _, d := range h.Domains {
		s := SignalFor(d)
		total.Blockers += s.Blockers
		total.Risks += s.Risks
		total.Ready += s.Ready
		total.Total += s.Total
	}
	return total
}

// GapCount is the number of unresolved checks: everything Not Ready or
// At Risk.
func GapCount(h domain.Handover) int {
	s := Signals(h)
	return s.Blockers + s.Risks
}

// CheckReady reports whether a check counts toward the readiness score.
// A check requiring approval contributes only once approved, even if its
// status was forced to Ready.
func CheckReady(c domain.Check) bool {
	if c.Status != domain.StatusReady {
		return false
	}
	if c.RequiresApproval && c.ApprovalStatus != domain.ApprovalApproved {
		return false
	}
	return true
}

// Score computes the readiness percentage: rounded ready/total. An empty
// handover scores zero.
func Score(h domain.Handover) int {
	var ready, total int
	for _, d := range h.Domains {
		for _, c := range d.Checks {
			total++
			if CheckReady(c) {
				ready++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(ready) / float64(total)))
}

// DeriveStatus rolls check states up to the handover: any blocker makes it
// Not Ready, any risk makes it At Risk, otherwise Ready. An empty handover
// is Not Ready.
func DeriveStatus(h domain.Handover) domain.Status {
	s := Signals(h)
	switch {
	case s.Total == 0:
		return domain.StatusNotReady
	case s.Blockers > 0:
		return domain.StatusNotReady
	case s.Risks > 0:
		return domain.StatusAtRisk
	default:
		return domain.StatusReady
	}
}

// Tone classifies a risk message for presentation.
type Tone string

const (
	ToneSuccess Tone = "success"
	ToneWarning Tone = "warning"
	ToneDanger  Tone = "danger"
)

// RiskSummary is the one-line go-live risk message for a handover.
type RiskSummary struct {
	Message string `json:"message"`
	Tone    Tone   `json:"tone"`
}

// SummarizeRisk maps gap count and status to exactly one message. The
// precedence is fixed: unresolved gaps first, then blocked status, then
// conditional status, then the all-clear.
func SummarizeRisk(gaps int, status domain.Status) RiskSummary {
	switch {
	case gaps > 0:
		return RiskSummary{Message: fmt.Sprintf("%d critical gaps unresolved", gaps), Tone: ToneWarning}
	case status == domain.StatusNotReady:
		return RiskSummary{Message: "go-live blocked by policy condition", Tone: ToneDanger}
	case status == domain.StatusAtRisk:
		return RiskSummary{Message: "risky go-live (conditional approval)", Tone: ToneWarning}
	default:
		return RiskSummary{Message: "all critical checks complete", Tone: ToneSuccess}
	}
}

// Summary aggregates fleet-wide readiness metrics.
type Summary struct {
	TotalHandovers int                   `json:"total_handovers"`
	ByStatus       map[domain.Status]int `json:"by_status"`
	ByType         map[string]int        `json:"by_type"`
	AverageScore   int                   `json:"average_score"`
	ReadyPercent   float64               `json:"ready_percent"`
	TotalChecks    int                   `json:"total_checks"`
	ChecksByStatus map[domain.Status]int `json:"checks_by_status"`
}

// Summarize computes the aggregate metrics over a set of handover trees.
func Summarize(handovers []domain.Handover) Summary {
	s := Summary{
		ByStatus: map[domain.Status]int{},
		ByType:   map[string]int{},
		ChecksByStatus: map[domain.Status]int{
			domain.StatusReady:    0,
			domain.StatusAtRisk:   0,
			domain.StatusNotReady: 0,
		},
	}
	totalScore := 0
	for _, h := range handovers {
		s.TotalHandovers++
		s.ByStatus[h.Status]++
		if h.Type != "" {
			s.ByType[h.Type]++
		}
		totalScore += h.Score
		for _, d := range h.Domains {
			for _, c := range d.Checks {
				s.TotalChecks++
				s.ChecksByStatus[c.Status]++
			}
		}
	}
	if s.TotalHandovers > 0 {
		s.AverageScore = int(math.Round(float64(totalScore) / float64(s.TotalHandovers)))
		ready := s.ByStatus[domain.StatusReady]
		s.ReadyPercent = math.Round(1000*float64(ready)/float64(s.TotalHandovers)) / 10
	}
	return s
}

// ScoreBucket is one bar of the score distribution.
type ScoreBucket struct {
	Range string `json:"range"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Count int    `json:"count"`
}

// ScoreHistogram buckets handover scores into the five fixed ranges.
func ScoreHistogram(handovers []domain.Handover) []ScoreBucket {
	buckets := []ScoreBucket{
		{Range: "0-20", Min: 0, Max: 20},
		{Range: "21-40", Min: 21, Max: 40},
		{Range: "41-60", Min: 41, Max: 60},
		{Range: "61-80", Min: 61, Max: 80},
		{Range: "81-100", Min: 81, Max: 100},
	}
	for _, h := range handovers {
		for i := range buckets {
			if h.Score >= buckets[i].Min && h.Score <= buckets[i].Max {
				buckets[i].Count++
				break
			}
		}
	}
	return buckets
}

// TrendPoint is one month of handover creations split by current status.
type TrendPoint struct {
	Month    string `json:"month"`
	Total    int    `json:"total"`
	Ready    int    `json:"ready"`
	AtRisk   int    `json:"at_risk"`
	NotReady int    `json:"not_ready"`
}

// MonthlyTrend groups handovers by creation month, oldest first. Handovers
// with unparseable creation timestamps are skipped.
func MonthlyTrend(handovers []domain.Handover) []TrendPoint {
	type bucket struct {
		point TrendPoint
	}
	byKey := map[string]*bucket{}
	var keys []string
	for _, h := range handovers {
		ts, err := time.Parse(time.RFC3339, h.CreatedAt)
		if err != nil {
			continue
		}
		key := ts.Format("2006-01")
		b, ok := byKey[key]
		if !ok {
			b = &bucket{point: TrendPoint{Month: ts.Format("Jan 2006")}}
			byKey[key] = b
			keys = append(keys, key)
		}
		b.point.Total++
		switch h.Status {
		case domain.StatusReady:
			b.point.Ready++
		case domain.StatusAtRisk:
			b.point.AtRisk++
		default:
			b.point.NotReady++
		}
	}
	sort.Strings(keys)
	points := make([]TrendPoint, 0, len(keys))
	for _, k := range keys {
		points = append(points, byKey[k].point)
	}
	return points
}
