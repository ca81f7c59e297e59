package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"testing"

	"github.com/kanwarsx-prog/opsHandover/internal/config"
	"github.com/kanwarsx-prog/opsHandover/internal/db"
	"github.com/kanwarsx-prog/opsHandover/internal/domain"
	"github.com/kanwarsx-prog/opsHandover/internal/engine"
	"github.com/kanwarsx-prog/opsHandover/internal/migrate"
	"github.com/kanwarsx-prog/opsHandover/internal/storage"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("ops-1")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := storage.NewDiskStore(db.FilesDir(workspace), cfg.Storage.BaseURL)
	e := engine.New(conn, cfg, store)
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		FilesDir: db.FilesDir(workspace),
		Auth: AuthConfig{
			AllowLegacyActorHeader: true,
			Logger:                 log.New(io.Discard, "", 0),
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Id", "tester")
	req.Header.Set("X-Actor-Name", "Test User")
	req.Header.Set("X-Actor-Role", "admin")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

type errEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func createHandover(t *testing.T, srv *testServer, body map[string]any) domain.Handover {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/handovers", body, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create handover status %d: %s", res.StatusCode, string(data))
	}
	var h domain.Handover
	if err := json.Unmarshal(data, &h); err != nil {
		t.Fatalf("unmarshal handover: %v", err)
	}
	return h
}

func findCheck(t *testing.T, h domain.Handover, title string) domain.Check {
	t.Helper()
	for _, d := range h.Domains {
		for _, c := range d.Checks {
			if c.Title == title {
				return c
			}
		}
	}
	t.Fatalf("check %q not found", title)
	return domain.Check{}
}

func checkPath(srv *testServer, id int64) string {
	return srv.URL + "/v0/checks/" + strconv.FormatInt(id, 10)
}

func TestCreateHandoverSeedsTemplate(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	h := createHandover(t, srv, map[string]any{
		"name":  "Payments platform",
		"type":  "cloud",
		"lead":  "alice",
		"owner": "bob",
	})
	if len(h.Domains) != 4 {
		t.Fatalf("expected 4 seeded domains, got %d", len(h.Domains))
	}
	if h.Status != domain.StatusNotReady || h.Score != 0 {
		t.Fatalf("expected fresh handover Not Ready/0, got %s/%d", h.Status, h.Score)
	}
	sec := findCheck(t, h, "Security Review Completed")
	if !sec.RequiresApproval || sec.ApprovalStatus != domain.ApprovalPending {
		t.Fatalf("expected approval-gated check to start pending, got %+v", sec)
	}
}

func TestApprovalGateOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	h := createHandover(t, srv, map[string]any{
		"name":  "Billing cutover",
		"lead":  "alice",
		"owner": "bob",
	})
	gated := findCheck(t, h, "Penetration Testing Sign-off")

	res, data := doJSON(t, client, http.MethodPatch, checkPath(srv, gated.ID), map[string]any{
		"status": "Ready",
	}, nil)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 before approval, got %d: %s", res.StatusCode, string(data))
	}
	var envelope errEnvelope
	_ = json.Unmarshal(data, &envelope)
	if envelope.Error.Code != "precondition_failed" {
		t.Fatalf("expected precondition_failed code, got %q", envelope.Error.Code)
	}

	res, data = doJSON(t, client, http.MethodPost, checkPath(srv, gated.ID)+"/approvals", map[string]any{
		"decision": "approved",
		"comments": "pen test report reviewed",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("record approval status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPatch, checkPath(srv, gated.ID), map[string]any{
		"status": "Ready",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected Ready after approval, got %d: %s", res.StatusCode, string(data))
	}
	var updated domain.Check
	_ = json.Unmarshal(data, &updated)
	if updated.Status != domain.StatusReady {
		t.Fatalf("expected Ready, got %s", updated.Status)
	}
}

func TestApprovalForbiddenForOutsider(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	h := createHandover(t, srv, map[string]any{
		"name":  "Data platform",
		"lead":  "alice",
		"owner": "bob",
	})
	gated := findCheck(t, h, "Security Review Completed")

	res, data := doJSON(t, srv.Client(), http.MethodPost, checkPath(srv, gated.ID)+"/approvals", map[string]any{
		"decision": "approved",
		"comments": "looks fine",
	}, map[string]string{"X-Actor-Id": "outsider", "X-Actor-Role": "developer"})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for unauthorized approver, got %d: %s", res.StatusCode, string(data))
	}
	var envelope errEnvelope
	_ = json.Unmarshal(data, &envelope)
	if envelope.Error.Code != "forbidden" {
		t.Fatalf("expected forbidden code, got %q", envelope.Error.Code)
	}
}

func TestDecisionFlowOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	h := createHandover(t, srv, map[string]any{
		"name":        "Legacy retirement",
		"lead":        "alice",
		"owner":       "bob",
		"no_template": true,
	})
	base := srv.URL + "/v0/handovers/" + strconv.FormatInt(h.ID, 10)

	res, data := doJSON(t, client, http.MethodPost, base+"/domains", map[string]any{
		"title": "Cutover",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add domain status %d: %s", res.StatusCode, string(data))
	}
	var d domain.Domain
	_ = json.Unmarshal(data, &d)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/domains/"+strconv.FormatInt(d.ID, 10)+"/checks", map[string]any{
		"title": "DNS cutover rehearsed",
		"owner": "alice",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add check status %d: %s", res.StatusCode, string(data))
	}
	var c domain.Check
	_ = json.Unmarshal(data, &c)

	res, data = doJSON(t, client, http.MethodPatch, checkPath(srv, c.ID), map[string]any{
		"blocker_reason": "runbook missing",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set blocker status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/decision", map[string]any{
		"decision": "GO_LIVE",
	}, nil)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected GO_LIVE blocked by open blocker, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/decision", map[string]any{
		"decision":          "GO_LIVE_RISK",
		"risk_acknowledged": true,
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected missing justification to fail, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/decision", map[string]any{
		"decision":          "GO_LIVE_RISK",
		"justification":     "launch window committed, runbook in progress",
		"risk_acknowledged": true,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("record decision status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/status", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status endpoint %d: %s", res.StatusCode, string(data))
	}
	var status HandoverStatusResponse
	if err := json.Unmarshal(data, &status); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if status.Status != domain.StatusAtRisk {
		t.Fatalf("expected At Risk after conditional go-live, got %s", status.Status)
	}
	if status.LatestDecision == nil || status.LatestDecision.Decision != "GO_LIVE_RISK" {
		t.Fatalf("expected latest decision GO_LIVE_RISK, got %+v", status.LatestDecision)
	}
	if len(status.DecisionOptions) != 3 {
		t.Fatalf("expected 3 decision options, got %d", len(status.DecisionOptions))
	}
}

func TestUIKeyPathsAccepted(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	h := createHandover(t, srv, map[string]any{
		"name":  "Support rollout",
		"type":  "human",
		"lead":  "alice",
		"owner": "bob",
	})
	c := h.Domains[0].Checks[0]

	res, data := doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/checks/c"+strconv.FormatInt(c.ID, 10), map[string]any{
		"owner": "carol",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected prefixed check key accepted, got %d: %s", res.StatusCode, string(data))
	}
	var updated domain.Check
	_ = json.Unmarshal(data, &updated)
	if updated.Owner != "carol" {
		t.Fatalf("expected owner carol, got %q", updated.Owner)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/checks/d"+strconv.FormatInt(c.ID, 10), map[string]any{
		"owner": "carol",
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected wrong-kind key rejected, got %d: %s", res.StatusCode, string(data))
	}
}

func TestErrorEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/handovers/9999", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
	var envelope errEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("expected not_found code, got %q", envelope.Error.Code)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/handovers", map[string]any{
		"lead":  "alice",
		"owner": "bob",
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d: %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &envelope)
	if envelope.Error.Code != "bad_request" {
		t.Fatalf("expected bad_request code, got %q", envelope.Error.Code)
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v0/handovers", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", res.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/v0/health", nil)
	res2, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	defer res2.Body.Close()
	if res2.StatusCode != http.StatusOK {
		t.Fatalf("expected health exempt from auth, got %d", res2.StatusCode)
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	createHandover(t, srv, map[string]any{
		"name":  "Analytics fixture",
		"lead":  "alice",
		"owner": "bob",
	})

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/analytics", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("analytics status %d: %s", res.StatusCode, string(data))
	}
	var report engine.AnalyticsReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if report.Summary.TotalHandovers != 1 {
		t.Fatalf("expected 1 handover in summary, got %d", report.Summary.TotalHandovers)
	}
	if len(report.Histogram) != 5 {
		t.Fatalf("expected 5 histogram buckets, got %d", len(report.Histogram))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/analytics/export.csv", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("csv export status %d: %s", res.StatusCode, string(data))
	}
	if ct := res.Header.Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("expected text/csv, got %q", ct)
	}
	if !bytes.HasPrefix(data, []byte("Metric,Value")) {
		t.Fatalf("unexpected csv header: %q", string(data))
	}
}

func TestEventsEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	h := createHandover(t, srv, map[string]any{
		"name":  "Event fixture",
		"lead":  "alice",
		"owner": "bob",
	})

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events?handover_id="+strconv.FormatInt(h.ID, 10), nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	var page paginatedEvents
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(page.Items) == 0 {
		t.Fatalf("expected at least one event")
	}
	if page.Items[0].Type != "handover.created" {
		t.Fatalf("expected handover.created first, got %s", page.Items[0].Type)
	}
}

func TestOpenAPISpecConcurrentFirstFetch(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	bodies := make([][]byte, 4)
	var wg sync.WaitGroup
	for i := range bodies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := srv.Client().Get(srv.URL + "/v0/openapi.json")
			if err != nil {
				t.Errorf("fetch spec: %v", err)
				return
			}
			defer res.Body.Close()
			if res.StatusCode != http.StatusOK {
				t.Errorf("spec status %d", res.StatusCode)
				return
			}
			bodies[i], _ = io.ReadAll(res.Body)
		}(i)
	}
	wg.Wait()
	var spec struct {
		OpenAPI string `json:"openapi"`
	}
	for i, body := range bodies {
		if err := json.Unmarshal(body, &spec); err != nil || spec.OpenAPI == "" {
			t.Fatalf("body %d is not an OpenAPI document: %v", i, err)
		}
		if !bytes.Equal(body, bodies[0]) {
			t.Fatalf("concurrent fetches returned different documents")
		}
	}
}
