package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/kanwarsx-prog/opsHandover/internal/domain"
	"github.com/kanwarsx-prog/opsHandover/internal/readiness"
)

// Request payloads

type CreateHandoverRequest struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty" enum:"cloud,product,legacy,human"`
	Description string `json:"description,omitempty"`
	Lead        string `json:"lead"`
	Owner       string `json:"owner"`
	TargetDate  string `json:"target_date,omitempty" format:"date"`
	TemplateID  int64  `json:"template_id,omitempty"`
	NoTemplate  bool   `json:"no_template,omitempty"`
}

type UpdateHandoverRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Lead        *string `json:"lead,omitempty"`
	Owner       *string `json:"owner,omitempty"`
	TargetDate  *string `json:"target_date,omitempty" format:"date"`
}

type CreateDomainRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type UpdateDomainRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

type MoveRequest struct {
	Position int `json:"position" minimum:"0"`
}

type CreateCheckRequest struct {
	Title            string `json:"title"`
	Owner            string `json:"owner,omitempty"`
	RequiresApproval bool   `json:"requires_approval,omitempty"`
}

type UpdateCheckRequest struct {
	Title            *string `json:"title,omitempty"`
	Owner            *string `json:"owner,omitempty"`
	Status           *string `json:"status,omitempty" enum:"Ready,At Risk,Not Ready"`
	BlockerReason    *string `json:"blocker_reason,omitempty"`
	RequiresApproval *bool   `json:"requires_approval,omitempty"`
}

type RecordApprovalRequest struct {
	Decision string `json:"decision" enum:"approved,rejected"`
	Comments string `json:"comments"`
}

type CreateEvidenceRequest struct {
	Title       string   `json:"title"`
	URL         string   `json:"url" format:"uri"`
	Type        string   `json:"type,omitempty" enum:"link,document,screenshot,video"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type RecordDecisionRequest struct {
	Decision         string `json:"decision" enum:"GO_LIVE,GO_LIVE_RISK,NOT_READY"`
	Justification    string `json:"justification,omitempty"`
	RiskAcknowledged bool   `json:"risk_acknowledged,omitempty"`
}

type CreateTemplateRequest struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	Category    string                  `json:"category,omitempty" enum:"system,organization,user"`
	Domains     []domain.TemplateDomain `json:"domains"`
}

// Response payloads

// HandoverResponse decorates the stored handover with derived presentation
// fields.
type HandoverResponse struct {
	domain.Handover
	GapCount        int                    `json:"gap_count"`
	Risk            readiness.RiskSummary  `json:"risk"`
	UpdatedRelative string                 `json:"updated_relative"`
	Signals         readiness.DomainSignal `json:"signals"`
}

type HandoverStatusResponse struct {
	ID              int64                      `json:"id"`
	Name            string                     `json:"name"`
	Status          domain.Status              `json:"status" enum:"Ready,At Risk,Not Ready"`
	Score           int                        `json:"score"`
	Signals         readiness.DomainSignal     `json:"signals"`
	Risk            readiness.RiskSummary      `json:"risk"`
	DecisionOptions []readiness.DecisionOption `json:"decision_options"`
	LatestDecision  *domain.DecisionRecord     `json:"latest_decision,omitempty"`
}

type TemplatePreviewResponse struct {
	Type    string                  `json:"type"`
	Summary templatesSummary        `json:"summary"`
	Domains []domain.TemplateDomain `json:"domains"`
}

type templatesSummary struct {
	DomainCount int `json:"domain_count"`
	CheckCount  int `json:"check_count"`
}

type paginatedEvents struct {
	Items      []domain.Event `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// Conversion helpers

func handoverResponse(h domain.Handover, now time.Time) HandoverResponse {
	signals := readiness.Signals(h)
	gaps := signals.Blockers + signals.Risks
	var updated time.Time
	if ts, err := time.Parse(time.RFC3339, h.UpdatedAt); err == nil {
		updated = ts
	}
	return HandoverResponse{
		Handover:        h,
		GapCount:        gaps,
		Risk:            readiness.SummarizeRisk(gaps, h.Status),
		UpdatedRelative: readiness.RelativeTime(now, updated),
		Signals:         signals,
	}
}

// pathID accepts both plain integer ids and their UI-key form ("c12" for a
// check, "d4" for a domain), which clients lift straight from list output.
func pathID(kind readiness.EntityKind, raw string) (int64, bool) {
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
		return id, true
	}
	k, id, err := readiness.ParseUIKey(raw)
	if err != nil || k != kind {
		return 0, false
	}
	return id, true
}

func requireID(kind readiness.EntityKind, raw, field string) (int64, huma.StatusError) {
	id, ok := pathID(kind, raw)
	if !ok {
		return 0, newAPIError(http.StatusBadRequest, "bad_request", "invalid "+field, map[string]any{"field": field, "value": raw})
	}
	return id, nil
}

func bodyBytes(ctx context.Context) []byte {
	if b, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return b
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}
