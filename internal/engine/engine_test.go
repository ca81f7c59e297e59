package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kanwarsx-prog/opsHandover/internal/config"
	"github.com/kanwarsx-prog/opsHandover/internal/db"
	"github.com/kanwarsx-prog/opsHandover/internal/domain"
	"github.com/kanwarsx-prog/opsHandover/internal/engine"
	"github.com/kanwarsx-prog/opsHandover/internal/migrate"
	"github.com/kanwarsx-prog/opsHandover/internal/readiness"
	"github.com/kanwarsx-prog/opsHandover/internal/repo"
	"github.com/kanwarsx-prog/opsHandover/internal/storage"
)

var tester = domain.Actor{ID: "tester", DisplayName: "Test User", Role: "admin"}

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("ops-1")
	eng := engine.New(conn, cfg, storage.NewDiskStore(db.FilesDir(dir), "/files"))
	eng.Now = func() time.Time { return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func createHandover(t *testing.T, env testEnv) domain.Handover {
	t.Helper()
	h, err := env.Engine.CreateHandover(env.Ctx, engine.HandoverCreateOptions{
		Name:  "Payments cutover",
		Type:  "cloud",
		Lead:  "dana",
		Owner: "ops-team",
		Actor: tester,
	})
	if err != nil {
		t.Fatalf("create handover: %v", err)
	}
	return h
}

func TestCreateHandoverSeedsTemplate(t *testing.T) {
	env := newTestEnv(t)
	h := createHandover(t, env)
	if len(h.Domains) != 4 {
		t.Fatalf("expected 4 seeded domains, got %d", len(h.Domains))
	}
	if h.Status != domain.StatusNotReady || h.Score != 0 {
		t.Fatalf("fresh handover should be Not Ready at score 0, got %s/%d", h.Status, h.Score)
	}
	var approvalChecks int
	for _, d := range h.Domains {
		for _, c := range d.Checks {
			if c.Status != domain.StatusNotReady {
				t.Fatalf("seeded check %q not Not Ready", c.Title)
			}
			if c.RequiresApproval {
				approvalChecks++
				if c.ApprovalStatus != domain.ApprovalPending {
					t.Fatalf("approval check %q should start pending", c.Title)
				}
			} else if c.ApprovalStatus != domain.ApprovalNone {
				t.Fatalf("check %q should have no approval status", c.Title)
			}
		}
	}
	if approvalChecks != 3 {
		t.Fatalf("cloud template should seed 3 approval checks, got %d", approvalChecks)
	}
}

func TestCreateHandoverValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateHandover(env.Ctx, engine.HandoverCreateOptions{Name: " ", Lead: "a", Owner: "b", Actor: tester})
	var verr readiness.ValidationError
	if !errors.As(err, &verr) || verr.Field != "name" {
		t.Fatalf("expected name validation error, got %v", err)
	}
	_, err = env.Engine.CreateHandover(env.Ctx, engine.HandoverCreateOptions{Name: "x", Owner: "b", Actor: tester})
	if !errors.As(err, &verr) || verr.Field != "lead" {
		t.Fatalf("expected lead validation error, got %v", err)
	}
}

func TestDerivedStatusAndScore(t *testing.T) {
	env := newTestEnv(t)
	h, err := env.Engine.CreateHandover(env.Ctx, engine.HandoverCreateOptions{
		Name: "Small", Lead: "l", Owner: "o", NoTemplate: true, Actor: tester,
	})
	if err != nil {
		t.Fatal(err)
	}
	d, err := env.Engine.AddDomain(env.Ctx, h.ID, "Ops", "", tester)
	if err != nil {
		t.Fatal(err)
	}
	var checks []domain.Check
	for _, title := range []string{"a", "b", "c"} {
		c, err := env.Engine.AddCheck(env.Ctx, engine.CheckCreateOptions{DomainID: d.ID, Title: title, Actor: tester})
		if err != nil {
			t.Fatal(err)
		}
		checks = append(checks, c)
	}
	setStatus := func(id int64, s domain.Status) {
		t.Helper()
		if _, err := env.Engine.UpdateCheck(env.Ctx, engine.CheckUpdateOptions{ID: id, Status: &s, Actor: tester}); err != nil {
			t.Fatalf("set status: %v", err)
		}
	}
	setStatus(checks[0].ID, domain.StatusReady)
	setStatus(checks[1].ID, domain.StatusReady)
	setStatus(checks[2].ID, domain.StatusAtRisk)

	got, err := env.Engine.GetHandover(env.Ctx, h.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Score != 67 {
		t.Fatalf("score = %d, want 67", got.Score)
	}
	if got.Status != domain.StatusAtRisk {
		t.Fatalf("status = %s, want At Risk", got.Status)
	}

	setStatus(checks[2].ID, domain.StatusReady)
	got, _ = env.Engine.GetHandover(env.Ctx, h.ID)
	if got.Status != domain.StatusReady || got.Score != 100 {
		t.Fatalf("all ready should give Ready/100, got %s/%d", got.Status, got.Score)
	}
}

func TestApprovalGateOnReady(t *testing.T) {
	env := newTestEnv(t)
	h, _ := env.Engine.CreateHandover(env.Ctx, engine.HandoverCreateOptions{
		Name: "Gated", Lead: "l", Owner: "o", NoTemplate: true, Actor: tester,
	})
	d, _ := env.Engine.AddDomain(env.Ctx, h.ID, "Security", "", tester)
	c, err := env.Engine.AddCheck(env.Ctx, engine.CheckCreateOptions{
		DomainID: d.ID, Title: "Security Review", Owner: "sam", RequiresApproval: true, Actor: tester,
	})
	if err != nil {
		t.Fatal(err)
	}
	ready := domain.StatusReady
	_, err = env.Engine.UpdateCheck(env.Ctx, engine.CheckUpdateOptions{ID: c.ID, Status: &ready, Actor: tester})
	var perr readiness.PreconditionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected precondition error for pending approval, got %v", err)
	}

	if _, err := env.Engine.RecordApproval(env.Ctx, engine.ApprovalOptions{
		CheckID: c.ID, Decision: "approved", Comments: "reviewed", Actor: tester,
	}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	c2, err := env.Engine.UpdateCheck(env.Ctx, engine.CheckUpdateOptions{ID: c.ID, Status: &ready, Actor: tester})
	if err != nil {
		t.Fatalf("ready after approval: %v", err)
	}
	if c2.Status != domain.StatusReady || c2.ApprovalStatus != domain.ApprovalApproved {
		t.Fatalf("unexpected check state %s/%s", c2.Status, c2.ApprovalStatus)
	}
}

func TestRejectionDemotesReadyCheck(t *testing.T) {
	env := newTestEnv(t)
	h, _ := env.Engine.CreateHandover(env.Ctx, engine.HandoverCreateOptions{
		Name: "Demote", Lead: "l", Owner: "o", NoTemplate: true, Actor: tester,
	})
	d, _ := env.Engine.AddDomain(env.Ctx, h.ID, "Security", "", tester)
	c, _ := env.Engine.AddCheck(env.Ctx, engine.CheckCreateOptions{
		DomainID: d.ID, Title: "Pen test", RequiresApproval: true, Actor: tester,
	})
	if _, err := env.Engine.RecordApproval(env.Ctx, engine.ApprovalOptions{
		CheckID: c.ID, Decision: "approved", Comments: "fine", Actor: tester,
	}); err != nil {
		t.Fatal(err)
	}
	ready := domain.StatusReady
	if _, err := env.Engine.UpdateCheck(env.Ctx, engine.CheckUpdateOptions{ID: c.ID, Status: &ready, Actor: tester}); err != nil {
		t.Fatal(err)
	}
	// a later rejection wins and the check can no longer claim Ready
	if _, err := env.Engine.RecordApproval(env.Ctx, engine.ApprovalOptions{
		CheckID: c.ID, Decision: "rejected", Comments: "regression found", Actor: tester,
	}); err != nil {
		t.Fatal(err)
	}
	got, _ := env.Engine.Repo.GetCheck(env.Ctx, c.ID)
	if got.ApprovalStatus != domain.ApprovalRejected {
		t.Fatalf("approval status = %s, want rejected", got.ApprovalStatus)
	}
	if got.Status != domain.StatusAtRisk {
		t.Fatalf("status = %s, want At Risk after rejection", got.Status)
	}
}

func TestApprovalAuthorization(t *testing.T) {
	env := newTestEnv(t)
	h, _ := env.Engine.CreateHandover(env.Ctx, engine.HandoverCreateOptions{
		Name: "Authz", Lead: "l", Owner: "o", NoTemplate: true, Actor: tester,
	})
	d, _ := env.Engine.AddDomain(env.Ctx, h.ID, "Security", "", tester)
	c, _ := env.Engine.AddCheck(env.Ctx, engine.CheckCreateOptions{
		DomainID: d.ID, Title: "Review", Owner: "sam", RequiresApproval: true, Actor: tester,
	})
	outsider := domain.Actor{ID: "joe", Role: "developer"}
	_, err := env.Engine.RecordApproval(env.Ctx, engine.ApprovalOptions{
		CheckID: c.ID, Decision: "approved", Comments: "lgtm", Actor: outsider,
	})
	var perr readiness.PreconditionError
	if !errors.As(err, &perr) || perr.Guard != "approver authorization" {
		t.Fatalf("expected authorization error, got %v", err)
	}
	// the check owner may decide regardless of role
	owner := domain.Actor{ID: "sam", Role: "developer"}
	if _, err := env.Engine.RecordApproval(env.Ctx, engine.ApprovalOptions{
		CheckID: c.ID, Decision: "approved", Comments: "lgtm", Actor: owner,
	}); err != nil {
		t.Fatalf("owner approval: %v", err)
	}
	// blank comments are refused
	_, err = env.Engine.RecordApproval(env.Ctx, engine.ApprovalOptions{
		CheckID: c.ID, Decision: "rejected", Comments: "  ", Actor: tester,
	})
	var verr readiness.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for blank comments, got %v", err)
	}
}

func TestConfiguredElevatedRolesHonored(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Config.Approvals.ElevatedRoles = []string{"director"}
	h, _ := env.Engine.CreateHandover(env.Ctx, engine.HandoverCreateOptions{
		Name: "Custom roles", Lead: "l", Owner: "o", NoTemplate: true, Actor: tester,
	})
	d, _ := env.Engine.AddDomain(env.Ctx, h.ID, "Security", "", tester)
	c, _ := env.Engine.AddCheck(env.Ctx, engine.CheckCreateOptions{
		DomainID: d.ID, Title: "Review", Owner: "sam", RequiresApproval: true, Actor: tester,
	})
	director := domain.Actor{ID: "dana", Role: "director"}
	if _, err := env.Engine.RecordApproval(env.Ctx, engine.ApprovalOptions{
		CheckID: c.ID, Decision: "approved", Comments: "signed off", Actor: director,
	}); err != nil {
		t.Fatalf("configured elevated role refused: %v", err)
	}
	// the builtin roles no longer apply once the workspace names its own
	_, err := env.Engine.RecordApproval(env.Ctx, engine.ApprovalOptions{
		CheckID: c.ID, Decision: "rejected", Comments: "revisit", Actor: domain.Actor{ID: "adm", Role: "admin"},
	})
	var perr readiness.PreconditionError
	if !errors.As(err, &perr) || perr.Guard != "approver authorization" {
		t.Fatalf("expected authorization error for out-of-list role, got %v", err)
	}
}

func TestConfiguredUploadCeiling(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Config.Storage.MaxFileSizeMB = 1
	h, _ := env.Engine.CreateHandover(env.Ctx, engine.HandoverCreateOptions{
		Name: "Uploads", Lead: "l", Owner: "o", NoTemplate: true, Actor: tester,
	})
	d, _ := env.Engine.AddDomain(env.Ctx, h.ID, "Docs", "", tester)
	c, _ := env.Engine.AddCheck(env.Ctx, engine.CheckCreateOptions{DomainID: d.ID, Title: "Notes", Actor: tester})

	_, err := env.Engine.AddEvidenceFile(env.Ctx, engine.FileEvidenceOptions{
		CheckID: c.ID, Filename: "dump.txt", Content: make([]byte, 2*1024*1024), ContentType: "text/plain", Actor: tester,
	})
	var verr readiness.ValidationError
	if !errors.As(err, &verr) || verr.Field != "file" {
		t.Fatalf("expected size validation error at 2 MiB with a 1 MiB ceiling, got %v", err)
	}
	if _, err := env.Engine.AddEvidenceFile(env.Ctx, engine.FileEvidenceOptions{
		CheckID: c.ID, Filename: "note.txt", Content: []byte("ok"), ContentType: "text/plain", Actor: tester,
	}); err != nil {
		t.Fatalf("small upload refused: %v", err)
	}
}

func TestGoLiveDecisionGate(t *testing.T) {
	env := newTestEnv(t)
	h, _ := env.Engine.CreateHandover(env.Ctx, engine.HandoverCreateOptions{
		Name: "Gate", Lead: "l", Owner: "o", NoTemplate: true, Actor: tester,
	})
	d, _ := env.Engine.AddDomain(env.Ctx, h.ID, "Ops", "", tester)
	c, _ := env.Engine.AddCheck(env.Ctx, engine.CheckCreateOptions{DomainID: d.ID, Title: "Runbooks", Actor: tester})

	// blocker present: GO_LIVE not selectable and rejected on submit
	opts, err := env.Engine.DecisionOptions(env.Ctx, h.ID)
	if err != nil {
		t.Fatal(err)
	}
	if opts[0].Decision != readiness.GoLive || opts[0].Selectable {
		t.Fatalf("GO_LIVE should be blocked: %+v", opts[0])
	}
	_, err = env.Engine.RecordDecision(env.Ctx, h.ID, readiness.DecisionInput{Decision: readiness.GoLive}, tester)
	var perr readiness.PreconditionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected gate error, got %v", err)
	}

	// GO_LIVE_RISK needs justification and acknowledgement
	_, err = env.Engine.RecordDecision(env.Ctx, h.ID, readiness.DecisionInput{
		Decision: readiness.GoLiveRisk, RiskAcknowledged: true,
	}, tester)
	var verr readiness.ValidationError
	if !errors.As(err, &verr) || verr.Field != "justification" {
		t.Fatalf("expected justification error, got %v", err)
	}
	rec, err := env.Engine.RecordDecision(env.Ctx, h.ID, readiness.DecisionInput{
		Decision: readiness.GoLiveRisk, Justification: "accepted by steering", RiskAcknowledged: true,
	}, tester)
	if err != nil {
		t.Fatalf("risk decision: %v", err)
	}
	if rec.Decision != "GO_LIVE_RISK" {
		t.Fatalf("unexpected record %+v", rec)
	}
	got, _ := env.Engine.GetHandover(env.Ctx, h.ID)
	if got.Status != domain.StatusAtRisk {
		t.Fatalf("handover status = %s, want At Risk after GO_LIVE_RISK", got.Status)
	}

	// clear the blocker, then GO_LIVE goes through
	ready := domain.StatusReady
	if _, err := env.Engine.UpdateCheck(env.Ctx, engine.CheckUpdateOptions{ID: c.ID, Status: &ready, Actor: tester}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.RecordDecision(env.Ctx, h.ID, readiness.DecisionInput{Decision: readiness.GoLive}, tester); err != nil {
		t.Fatalf("go-live: %v", err)
	}
	got, _ = env.Engine.GetHandover(env.Ctx, h.ID)
	if got.Status != domain.StatusReady {
		t.Fatalf("handover status = %s, want Ready after GO_LIVE", got.Status)
	}
	history, err := env.Engine.ListDecisions(env.Ctx, h.ID)
	if err != nil || len(history) != 2 {
		t.Fatalf("expected 2 decisions, got %d (%v)", len(history), err)
	}
	if history[0].Decision != "GO_LIVE" {
		t.Fatalf("latest decision should come first, got %s", history[0].Decision)
	}
}

func TestEvidenceLifecycle(t *testing.T) {
	env := newTestEnv(t)
	h, _ := env.Engine.CreateHandover(env.Ctx, engine.HandoverCreateOptions{
		Name: "Evidence", Lead: "l", Owner: "o", NoTemplate: true, Actor: tester,
	})
	d, _ := env.Engine.AddDomain(env.Ctx, h.ID, "Ops", "", tester)
	c, _ := env.Engine.AddCheck(env.Ctx, engine.CheckCreateOptions{DomainID: d.ID, Title: "Runbooks", Actor: tester})

	_, err := env.Engine.AddEvidence(env.Ctx, engine.EvidenceOptions{
		CheckID: c.ID, Title: "broken", URL: "not-a-url", Actor: tester,
	})
	var verr readiness.ValidationError
	if !errors.As(err, &verr) || verr.Field != "url" {
		t.Fatalf("expected url validation error, got %v", err)
	}

	link, err := env.Engine.AddEvidence(env.Ctx, engine.EvidenceOptions{
		CheckID: c.ID, Title: "wiki", URL: "https://example.com/doc", Tags: []string{"runbook"}, Actor: tester,
	})
	if err != nil {
		t.Fatalf("add link: %v", err)
	}
	if link.Type != "link" || link.UploadedBy != "tester" {
		t.Fatalf("unexpected evidence %+v", link)
	}

	file, err := env.Engine.AddEvidenceFile(env.Ctx, engine.FileEvidenceOptions{
		CheckID: c.ID, Filename: "screen shot.png", Content: []byte("png-bytes"), ContentType: "image/png", Actor: tester,
	})
	if err != nil {
		t.Fatalf("add file: %v", err)
	}
	if file.Type != "screenshot" || file.FilePath == "" || file.ThumbnailPath == "" {
		t.Fatalf("image upload should be screenshot with paths: %+v", file)
	}

	_, err = env.Engine.AddEvidenceFile(env.Ctx, engine.FileEvidenceOptions{
		CheckID: c.ID, Filename: "x.bin", Content: []byte{1}, ContentType: "application/octet-stream", Actor: tester,
	})
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for disallowed type, got %v", err)
	}

	if err := env.Engine.RemoveEvidence(env.Ctx, file.ID, tester); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, _ := env.Engine.GetHandover(env.Ctx, h.ID)
	if n := len(got.Domains[0].Checks[0].Evidence); n != 1 {
		t.Fatalf("expected 1 evidence left, got %d", n)
	}
}

func TestRequiresApprovalToggleRecomputesFromHistory(t *testing.T) {
	env := newTestEnv(t)
	h, _ := env.Engine.CreateHandover(env.Ctx, engine.HandoverCreateOptions{
		Name: "Toggle", Lead: "l", Owner: "o", NoTemplate: true, Actor: tester,
	})
	d, _ := env.Engine.AddDomain(env.Ctx, h.ID, "Sec", "", tester)
	c, _ := env.Engine.AddCheck(env.Ctx, engine.CheckCreateOptions{
		DomainID: d.ID, Title: "Review", RequiresApproval: true, Actor: tester,
	})
	if _, err := env.Engine.RecordApproval(env.Ctx, engine.ApprovalOptions{
		CheckID: c.ID, Decision: "approved", Comments: "ok", Actor: tester,
	}); err != nil {
		t.Fatal(err)
	}
	off, on := false, true
	got, err := env.Engine.UpdateCheck(env.Ctx, engine.CheckUpdateOptions{ID: c.ID, RequiresApproval: &off, Actor: tester})
	if err != nil || got.ApprovalStatus != domain.ApprovalNone {
		t.Fatalf("toggle off should clear approval status: %s %v", got.ApprovalStatus, err)
	}
	got, err = env.Engine.UpdateCheck(env.Ctx, engine.CheckUpdateOptions{ID: c.ID, RequiresApproval: &on, Actor: tester})
	if err != nil || got.ApprovalStatus != domain.ApprovalApproved {
		t.Fatalf("toggle on should restore approved from history: %s %v", got.ApprovalStatus, err)
	}
}

func TestDeleteHandoverRemovesStoredFiles(t *testing.T) {
	env := newTestEnv(t)
	h, _ := env.Engine.CreateHandover(env.Ctx, engine.HandoverCreateOptions{
		Name: "Doomed", Lead: "l", Owner: "o", NoTemplate: true, Actor: tester,
	})
	d, _ := env.Engine.AddDomain(env.Ctx, h.ID, "Ops", "", tester)
	c, _ := env.Engine.AddCheck(env.Ctx, engine.CheckCreateOptions{DomainID: d.ID, Title: "Check", Actor: tester})
	if _, err := env.Engine.AddEvidenceFile(env.Ctx, engine.FileEvidenceOptions{
		CheckID: c.ID, Filename: "doc.pdf", Content: []byte("pdf"), ContentType: "application/pdf", Actor: tester,
	}); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteHandover(env.Ctx, h.ID, tester); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.Engine.GetHandover(env.Ctx, h.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	// children went with the cascade
	if _, err := env.Engine.Repo.GetCheck(env.Ctx, c.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected check gone, got %v", err)
	}
}

func TestAnalytics(t *testing.T) {
	env := newTestEnv(t)
	for _, name := range []string{"one", "two"} {
		h, err := env.Engine.CreateHandover(env.Ctx, engine.HandoverCreateOptions{
			Name: name, Lead: "l", Owner: "o", NoTemplate: true, Actor: tester,
		})
		if err != nil {
			t.Fatal(err)
		}
		d, _ := env.Engine.AddDomain(env.Ctx, h.ID, "Ops", "", tester)
		c, _ := env.Engine.AddCheck(env.Ctx, engine.CheckCreateOptions{DomainID: d.ID, Title: "only", Actor: tester})
		if name == "one" {
			ready := domain.StatusReady
			if _, err := env.Engine.UpdateCheck(env.Ctx, engine.CheckUpdateOptions{ID: c.ID, Status: &ready, Actor: tester}); err != nil {
				t.Fatal(err)
			}
		}
	}
	report, err := env.Engine.Analytics(env.Ctx, repo.HandoverFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Summary.TotalHandovers != 2 || report.Summary.ByStatus[domain.StatusReady] != 1 {
		t.Fatalf("unexpected summary %+v", report.Summary)
	}
	if report.Summary.AverageScore != 50 || report.Summary.ReadyPercent != 50.0 {
		t.Fatalf("avg/ready = %d/%v", report.Summary.AverageScore, report.Summary.ReadyPercent)
	}
	if len(report.Trend) != 1 || report.Trend[0].Month != "Aug 2026" {
		t.Fatalf("unexpected trend %+v", report.Trend)
	}
}

func TestEventsAppendedOnMutations(t *testing.T) {
	env := newTestEnv(t)
	h := createHandover(t, env)
	events, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, h.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) == 0 || events[0].Type != "handover.created" {
		t.Fatalf("expected handover.created event, got %+v", events)
	}
}
