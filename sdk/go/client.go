package opshandoversdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal OpsHandover HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Handover represents the API handover model (partial).
type Handover struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Lead       string   `json:"lead"`
	Owner      string   `json:"owner"`
	TargetDate string   `json:"target_date,omitempty"`
	Status     string   `json:"status"`
	Score      int      `json:"score"`
	GapCount   int      `json:"gap_count"`
	Domains    []Domain `json:"domains,omitempty"`
}

// Domain is a readiness category inside a handover.
type Domain struct {
	ID     int64   `json:"id"`
	Title  string  `json:"title"`
	Checks []Check `json:"checks,omitempty"`
}

// Check is a single readiness item.
type Check struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	Owner            string `json:"owner"`
	Status           string `json:"status"`
	BlockerReason    string `json:"blocker_reason,omitempty"`
	RequiresApproval bool   `json:"requires_approval"`
	ApprovalStatus   string `json:"approval_status,omitempty"`
}

// Approval is one entry in a check's sign-off history.
type Approval struct {
	ID       int64  `json:"id"`
	CheckID  int64  `json:"check_id"`
	Approver string `json:"approver"`
	Decision string `json:"decision"`
	Comments string `json:"comments"`
	TS       string `json:"ts"`
}

// Evidence is an attachment or link backing a check.
type Evidence struct {
	ID       int64  `json:"id"`
	CheckID  int64  `json:"check_id"`
	Title    string `json:"title"`
	URL      string `json:"url,omitempty"`
	Type     string `json:"type"`
	FilePath string `json:"file_path,omitempty"`
}

// DecisionRecord is a recorded go-live decision.
type DecisionRecord struct {
	ID               int64  `json:"id"`
	HandoverID       int64  `json:"handover_id"`
	Decision         string `json:"decision"`
	Justification    string `json:"justification,omitempty"`
	RiskAcknowledged bool   `json:"risk_acknowledged,omitempty"`
	DecidedBy        string `json:"decided_by"`
	CreatedAt        string `json:"created_at"`
}

// DecisionOption describes one selectable go-live outcome.
type DecisionOption struct {
	Decision   string `json:"decision"`
	Label      string `json:"label"`
	Selectable bool   `json:"selectable"`
	Reason     string `json:"reason,omitempty"`
}

// HandoverStatus is the readiness rollup for one handover.
type HandoverStatus struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	Status          string           `json:"status"`
	Score           int              `json:"score"`
	DecisionOptions []DecisionOption `json:"decision_options"`
	LatestDecision  *DecisionRecord  `json:"latest_decision,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	HandoverID int64          `json:"handover_id,omitempty"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps event listings with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// CreateHandover creates a handover, seeding the builtin template for its
// type unless noTemplate is set.
func (c *Client) CreateHandover(ctx context.Context, name, handoverType, lead, owner string, noTemplate bool) (Handover, error) {
	body := map[string]any{
		"name":        name,
		"type":        handoverType,
		"lead":        lead,
		"owner":       owner,
		"no_template": noTemplate,
	}
	var resp Handover
	err := c.do(ctx, http.MethodPost, "v0/handovers", body, &resp)
	return resp, err
}

// GetHandover fetches a handover tree.
func (c *Client) GetHandover(ctx context.Context, id int64) (Handover, error) {
	var resp Handover
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v0/handovers/%d", id), nil, &resp)
	return resp, err
}

// ListHandovers returns handover summaries, optionally filtered by status.
func (c *Client) ListHandovers(ctx context.Context, status string) ([]Handover, error) {
	endpoint := "v0/handovers"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Handover
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Status returns the readiness rollup and decision options.
func (c *Client) Status(ctx context.Context, handoverID int64) (HandoverStatus, error) {
	var resp HandoverStatus
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v0/handovers/%d/status", handoverID), nil, &resp)
	return resp, err
}

// UpdateCheck patches check fields; nil pointers leave fields untouched.
func (c *Client) UpdateCheck(ctx context.Context, checkID int64, status, blockerReason *string) (Check, error) {
	body := map[string]any{}
	if status != nil {
		body["status"] = *status
	}
	if blockerReason != nil {
		body["blocker_reason"] = *blockerReason
	}
	var resp Check
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("v0/checks/%d", checkID), body, &resp)
	return resp, err
}

// RecordApproval signs off (or rejects) an approval-gated check.
func (c *Client) RecordApproval(ctx context.Context, checkID int64, decision, comments string) (Approval, error) {
	body := map[string]any{
		"decision": decision,
		"comments": comments,
	}
	var resp Approval
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/checks/%d/approvals", checkID), body, &resp)
	return resp, err
}

// AddEvidence attaches link evidence to a check.
func (c *Client) AddEvidence(ctx context.Context, checkID int64, title, evidenceURL string, tags []string) (Evidence, error) {
	body := map[string]any{
		"title": title,
		"url":   evidenceURL,
		"tags":  tags,
	}
	var resp Evidence
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/checks/%d/evidence", checkID), body, &resp)
	return resp, err
}

// RecordDecision records a go-live decision for a handover.
func (c *Client) RecordDecision(ctx context.Context, handoverID int64, decision, justification string, riskAcknowledged bool) (DecisionRecord, error) {
	body := map[string]any{
		"decision":          decision,
		"justification":     justification,
		"risk_acknowledged": riskAcknowledged,
	}
	var resp DecisionRecord
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/handovers/%d/decision", handoverID), body, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
