package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kanwarsx-prog/opsHandover/internal/config"
	"github.com/kanwarsx-prog/opsHandover/internal/domain"
	"github.com/kanwarsx-prog/opsHandover/internal/events"
	"github.com/kanwarsx-prog/opsHandover/internal/readiness"
	"github.com/kanwarsx-prog/opsHandover/internal/repo"
	"github.com/kanwarsx-prog/opsHandover/internal/storage"
	"github.com/kanwarsx-prog/opsHandover/internal/templates"
)

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Store     storage.Store
	Templates *templates.Provider
	Config    *config.Config
	Now       func() time.Time
}

func New(db *sql.DB, cfg *config.Config, store storage.Store) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:        db,
		Repo:      r,
		Events:    events.Writer{DB: db},
		Store:     store,
		Templates: &templates.Provider{Lib: r},
		Config:    cfg,
		Now:       time.Now,
	}
}

// MaxFileSize returns the upload ceiling in bytes, taking the workspace
// config's storage.max_file_size_mb over the builtin default.
func (e Engine) MaxFileSize() int64 {
	if e.Config != nil && e.Config.Storage.MaxFileSizeMB > 0 {
		return int64(e.Config.Storage.MaxFileSizeMB) * 1024 * 1024
	}
	return storage.MaxFileSize
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowStr() string {
	return e.now().UTC().Format(time.RFC3339)
}

func idStr(id int64) string {
	return strconv.FormatInt(id, 10)
}

// --- handovers ---

// HandoverCreateOptions are parameters for creating a handover.
type HandoverCreateOptions struct {
	Name        string
	Type        string
	Description string
	Lead        string
	Owner       string
	TargetDate  string
	TemplateID  int64
	NoTemplate  bool
	Actor       domain.Actor
}

// CreateHandover creates a handover and seeds its domains and checks from a
// template unless NoTemplate is set. Checks flagged requires-approval start
// with a pending approval status.
func (e Engine) CreateHandover(ctx context.Context, opts HandoverCreateOptions) (domain.Handover, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Handover{}, readiness.ValidationError{Field: "name", Reason: "must not be blank"}
	}
	if strings.TrimSpace(opts.Lead) == "" {
		return domain.Handover{}, readiness.ValidationError{Field: "lead", Reason: "must not be blank"}
	}
	if strings.TrimSpace(opts.Owner) == "" {
		return domain.Handover{}, readiness.ValidationError{Field: "owner", Reason: "must not be blank"}
	}
	if opts.Type == "" {
		opts.Type = templates.DefaultType
		if e.Config != nil && e.Config.Defaults.HandoverType != "" {
			opts.Type = e.Config.Defaults.HandoverType
		}
	}
	var seed []domain.TemplateDomain
	if !opts.NoTemplate {
		var err error
		seed, err = e.Templates.Resolve(ctx, opts.Type, opts.TemplateID)
		if err != nil {
			return domain.Handover{}, fmt.Errorf("resolve template: %w", err)
		}
	}
	now := e.nowStr()
	h := domain.Handover{
		Name:        opts.Name,
		Type:        opts.Type,
		Description: opts.Description,
		Lead:        opts.Lead,
		Owner:       opts.Owner,
		TargetDate:  opts.TargetDate,
		Status:      domain.StatusNotReady,
		Score:       0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Handover{}, err
	}
	defer tx.Rollback()

	h.ID, err = e.Repo.InsertHandoverTx(ctx, tx, h)
	if err != nil {
		return domain.Handover{}, fmt.Errorf("insert handover: %w", err)
	}
	for i, td := range seed {
		d := domain.Domain{HandoverID: h.ID, Title: td.Title, SortOrder: i}
		d.ID, err = e.Repo.InsertDomainTx(ctx, tx, d)
		if err != nil {
			return domain.Handover{}, fmt.Errorf("seed domain %q: %w", td.Title, err)
		}
		for j, tc := range td.Checks {
			c := domain.Check{
				DomainID:         d.ID,
				Title:            tc.Title,
				Owner:            tc.Owner,
				Status:           domain.StatusNotReady,
				RequiresApproval: tc.RequiresApproval,
				SortOrder:        j,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if tc.RequiresApproval {
				c.ApprovalStatus = domain.ApprovalPending
			}
			if _, err := e.Repo.InsertCheckTx(ctx, tx, c); err != nil {
				return domain.Handover{}, fmt.Errorf("seed check %q: %w", tc.Title, err)
			}
		}
	}
	if err := e.Events.Append(ctx, tx, "handover.created", h.ID, "handover", idStr(h.ID), opts.Actor.ID, events.EventPayload{
		"name": h.Name,
		"type": h.Type,
	}); err != nil {
		return domain.Handover{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Handover{}, err
	}
	return e.Repo.HandoverTree(ctx, h.ID)
}

// GetHandover returns a handover with its full subtree.
func (e Engine) GetHandover(ctx context.Context, id int64) (domain.Handover, error) {
	return e.Repo.HandoverTree(ctx, id)
}

// ListHandovers returns handovers without child detail.
func (e Engine) ListHandovers(ctx context.Context, f repo.HandoverFilters) ([]domain.Handover, error) {
	return e.Repo.ListHandovers(ctx, f)
}

// UpdateHandover changes descriptive fields. Status and score stay derived
// from checks and cannot be written directly.
func (e Engine) UpdateHandover(ctx context.Context, id int64, u repo.HandoverFieldUpdates, actor domain.Actor) (domain.Handover, error) {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return domain.Handover{}, readiness.ValidationError{Field: "name", Reason: "must not be blank"}
	}
	if _, err := e.Repo.GetHandover(ctx, id); err != nil {
		return domain.Handover{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Handover{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateHandoverFieldsTx(ctx, tx, id, u, e.nowStr()); err != nil {
		return domain.Handover{}, err
	}
	if err := e.Events.Append(ctx, tx, "handover.updated", id, "handover", idStr(id), actor.ID, events.EventPayload{}); err != nil {
		return domain.Handover{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Handover{}, err
	}
	return e.Repo.HandoverTree(ctx, id)
}

// DeleteHandover removes a handover, its subtree, and any stored evidence
// files.
func (e Engine) DeleteHandover(ctx context.Context, id int64, actor domain.Actor) error {
	if _, err := e.Repo.GetHandover(ctx, id); err != nil {
		return err
	}
	paths, err := e.Repo.StoredFilePaths(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteHandoverTx(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "handover.deleted", 0, "handover", idStr(id), actor.ID, events.EventPayload{}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if e.Store != nil {
		for _, p := range paths {
			// row is already gone; a stranded file is not worth failing over
			_ = e.Store.Delete(ctx, p)
		}
	}
	return nil
}

// --- domains ---

// AddDomain appends a domain at the end of the handover's ordering.
func (e Engine) AddDomain(ctx context.Context, handoverID int64, title, description string, actor domain.Actor) (domain.Domain, error) {
	if strings.TrimSpace(title) == "" {
		return domain.Domain{}, readiness.ValidationError{Field: "title", Reason: "must not be blank"}
	}
	if _, err := e.Repo.GetHandover(ctx, handoverID); err != nil {
		return domain.Domain{}, err
	}
	sort, err := e.Repo.NextDomainSort(ctx, handoverID)
	if err != nil {
		return domain.Domain{}, err
	}
	d := domain.Domain{HandoverID: handoverID, Title: title, Description: description, SortOrder: sort}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return d, err
	}
	defer tx.Rollback()
	d.ID, err = e.Repo.InsertDomainTx(ctx, tx, d)
	if err != nil {
		return d, err
	}
	if err := e.Events.Append(ctx, tx, "domain.added", handoverID, "domain", idStr(d.ID), actor.ID, events.EventPayload{"title": d.Title}); err != nil {
		return d, err
	}
	if err := tx.Commit(); err != nil {
		return d, err
	}
	return d, nil
}

// UpdateDomain changes a domain's title or description.
func (e Engine) UpdateDomain(ctx context.Context, id int64, title, description *string, actor domain.Actor) (domain.Domain, error) {
	if title != nil && strings.TrimSpace(*title) == "" {
		return domain.Domain{}, readiness.ValidationError{Field: "title", Reason: "must not be blank"}
	}
	d, err := e.Repo.GetDomain(ctx, id)
	if err != nil {
		return d, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return d, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateDomainTx(ctx, tx, id, title, description); err != nil {
		return d, err
	}
	if err := e.Events.Append(ctx, tx, "domain.updated", d.HandoverID, "domain", idStr(id), actor.ID, events.EventPayload{}); err != nil {
		return d, err
	}
	if err := tx.Commit(); err != nil {
		return d, err
	}
	return e.Repo.GetDomain(ctx, id)
}

// MoveDomain sets a domain's position within its handover.
func (e Engine) MoveDomain(ctx context.Context, id int64, position int, actor domain.Actor) error {
	if position < 0 {
		return readiness.ValidationError{Field: "position", Reason: "must not be negative"}
	}
	d, err := e.Repo.GetDomain(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.SetDomainSortTx(ctx, tx, id, position); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "domain.moved", d.HandoverID, "domain", idStr(id), actor.ID, events.EventPayload{"position": position}); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteDomain removes a domain and its checks, then recomputes the
// handover's derived state.
func (e Engine) DeleteDomain(ctx context.Context, id int64, actor domain.Actor) error {
	d, err := e.Repo.GetDomain(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteDomainTx(ctx, tx, id); err != nil {
		return err
	}
	if err := e.recomputeHandover(ctx, tx, d.HandoverID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "domain.deleted", d.HandoverID, "domain", idStr(id), actor.ID, events.EventPayload{"title": d.Title}); err != nil {
		return err
	}
	return tx.Commit()
}

// --- checks ---

// CheckCreateOptions are parameters for adding a check to a domain.
type CheckCreateOptions struct {
	DomainID         int64
	Title            string
	Owner            string
	RequiresApproval bool
	Actor            domain.Actor
}

// AddCheck appends a check at the end of the domain's ordering. New checks
// start Not Ready.
func (e Engine) AddCheck(ctx context.Context, opts CheckCreateOptions) (domain.Check, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Check{}, readiness.ValidationError{Field: "title", Reason: "must not be blank"}
	}
	d, err := e.Repo.GetDomain(ctx, opts.DomainID)
	if err != nil {
		return domain.Check{}, err
	}
	sort, err := e.Repo.NextCheckSort(ctx, opts.DomainID)
	if err != nil {
		return domain.Check{}, err
	}
	now := e.nowStr()
	c := domain.Check{
		DomainID:         opts.DomainID,
		Title:            opts.Title,
		Owner:            opts.Owner,
		Status:           domain.StatusNotReady,
		RequiresApproval: opts.RequiresApproval,
		SortOrder:        sort,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if opts.RequiresApproval {
		c.ApprovalStatus = domain.ApprovalPending
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()
	c.ID, err = e.Repo.InsertCheckTx(ctx, tx, c)
	if err != nil {
		return c, err
	}
	if err := e.recomputeHandover(ctx, tx, d.HandoverID); err != nil {
		return c, err
	}
	if err := e.Events.Append(ctx, tx, "check.added", d.HandoverID, "check", idStr(c.ID), opts.Actor.ID, events.EventPayload{"title": c.Title}); err != nil {
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return c, err
	}
	return c, nil
}

// CheckUpdateOptions encapsulates allowed check updates. Nil fields are left
// unchanged.
type CheckUpdateOptions struct {
	ID               int64
	Title            *string
	Owner            *string
	Status           *domain.Status
	BlockerReason    *string
	RequiresApproval *bool
	Actor            domain.Actor
}

func validStatus(s domain.Status) bool {
	switch s {
	case domain.StatusReady, domain.StatusAtRisk, domain.StatusNotReady:
		return true
	}
	return false
}

// UpdateCheck applies field updates to a check and recomputes the parent
// handover. Marking a check Ready is refused while its approval is pending
// or rejected.
func (e Engine) UpdateCheck(ctx context.Context, opts CheckUpdateOptions) (domain.Check, error) {
	c, err := e.Repo.GetCheck(ctx, opts.ID)
	if err != nil {
		return c, err
	}
	handoverID, err := e.Repo.HandoverIDForCheck(ctx, opts.ID)
	if err != nil {
		return c, err
	}
	if opts.Title != nil {
		if strings.TrimSpace(*opts.Title) == "" {
			return c, readiness.ValidationError{Field: "title", Reason: "must not be blank"}
		}
		c.Title = *opts.Title
	}
	if opts.Owner != nil {
		c.Owner = *opts.Owner
	}
	if opts.RequiresApproval != nil && *opts.RequiresApproval != c.RequiresApproval {
		c.RequiresApproval = *opts.RequiresApproval
		if c.RequiresApproval {
			history, err := e.Repo.ListApprovals(ctx, c.ID)
			if err != nil {
				return c, err
			}
			c.ApprovalStatus = readiness.ApprovalStatus(history, true)
		} else {
			c.ApprovalStatus = domain.ApprovalNone
		}
	}
	if opts.BlockerReason != nil {
		c.BlockerReason = *opts.BlockerReason
	}
	if opts.Status != nil {
		if !validStatus(*opts.Status) {
			return c, readiness.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", *opts.Status)}
		}
		if *opts.Status == domain.StatusReady && !readiness.CanMarkReady(c) {
			return c, readiness.PreconditionError{Guard: "approval gate", Reason: "check requires an approved decision before it can be Ready"}
		}
		c.Status = *opts.Status
		if c.Status == domain.StatusReady {
			c.BlockerReason = ""
		}
	}
	c.UpdatedAt = e.nowStr()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateCheckTx(ctx, tx, c); err != nil {
		return c, err
	}
	if err := e.recomputeHandover(ctx, tx, handoverID); err != nil {
		return c, err
	}
	if err := e.Events.Append(ctx, tx, "check.updated", handoverID, "check", idStr(c.ID), opts.Actor.ID, events.EventPayload{"status": string(c.Status)}); err != nil {
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return c, err
	}
	return c, nil
}

// MoveCheck sets a check's position within its domain.
func (e Engine) MoveCheck(ctx context.Context, id int64, position int, actor domain.Actor) error {
	if position < 0 {
		return readiness.ValidationError{Field: "position", Reason: "must not be negative"}
	}
	c, err := e.Repo.GetCheck(ctx, id)
	if err != nil {
		return err
	}
	handoverID, err := e.Repo.HandoverIDForCheck(ctx, id)
	if err != nil {
		return err
	}
	c.SortOrder = position
	c.UpdatedAt = e.nowStr()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateCheckTx(ctx, tx, c); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "check.moved", handoverID, "check", idStr(id), actor.ID, events.EventPayload{"position": position}); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteCheck removes a check and recomputes the parent handover.
func (e Engine) DeleteCheck(ctx context.Context, id int64, actor domain.Actor) error {
	c, err := e.Repo.GetCheck(ctx, id)
	if err != nil {
		return err
	}
	handoverID, err := e.Repo.HandoverIDForCheck(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteCheckTx(ctx, tx, id); err != nil {
		return err
	}
	if err := e.recomputeHandover(ctx, tx, handoverID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "check.deleted", handoverID, "check", idStr(id), actor.ID, events.EventPayload{"title": c.Title}); err != nil {
		return err
	}
	return tx.Commit()
}

// --- approvals ---

// ApprovalOptions are parameters for recording an approval decision.
type ApprovalOptions struct {
	CheckID  int64
	Decision string
	Comments string
	Actor    domain.Actor
}

// RecordApproval appends an immutable approval record and recomputes the
// check's approval status from the full history. A rejection demotes a
// Ready check to At Risk.
func (e Engine) RecordApproval(ctx context.Context, opts ApprovalOptions) (domain.Approval, error) {
	c, err := e.Repo.GetCheck(ctx, opts.CheckID)
	if err != nil {
		return domain.Approval{}, err
	}
	if !c.RequiresApproval {
		return domain.Approval{}, readiness.PreconditionError{Guard: "approval", Reason: "check does not require approval"}
	}
	if err := readiness.ValidateApproval(opts.Decision, opts.Comments); err != nil {
		return domain.Approval{}, err
	}
	if !readiness.CanDecideApproval(c, opts.Actor, e.Config.ElevatedRoles(readiness.ElevatedRoles)) {
		return domain.Approval{}, readiness.PreconditionError{Guard: "approver authorization", Reason: "actor is neither the check owner nor an elevated role"}
	}
	handoverID, err := e.Repo.HandoverIDForCheck(ctx, opts.CheckID)
	if err != nil {
		return domain.Approval{}, err
	}
	history, err := e.Repo.ListApprovals(ctx, opts.CheckID)
	if err != nil {
		return domain.Approval{}, err
	}
	a := domain.Approval{
		CheckID:   opts.CheckID,
		Approver:  opts.Actor.DisplayName,
		Role:      opts.Actor.Role,
		Decision:  opts.Decision,
		Comments:  opts.Comments,
		CreatedAt: e.nowStr(),
	}
	if a.Approver == "" {
		a.Approver = opts.Actor.ID
	}
	c.ApprovalStatus = readiness.ApprovalStatus(append(history, a), true)
	if c.ApprovalStatus != domain.ApprovalApproved && c.Status == domain.StatusReady {
		c.Status = domain.StatusAtRisk
	}
	c.UpdatedAt = a.CreatedAt

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()
	a.ID, err = e.Repo.InsertApprovalTx(ctx, tx, a)
	if err != nil {
		return a, err
	}
	if err := e.Repo.UpdateCheckTx(ctx, tx, c); err != nil {
		return a, err
	}
	if err := e.recomputeHandover(ctx, tx, handoverID); err != nil {
		return a, err
	}
	if err := e.Events.Append(ctx, tx, "approval.recorded", handoverID, "approval", idStr(a.ID), opts.Actor.ID, events.EventPayload{
		"check_id": c.ID,
		"decision": a.Decision,
	}); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	return a, nil
}

// --- evidence ---

// EvidenceOptions are parameters for attaching link evidence to a check.
type EvidenceOptions struct {
	CheckID     int64
	Title       string
	URL         string
	Type        string
	Description string
	Tags        []string
	Actor       domain.Actor
}

// AddEvidence attaches link evidence to a check.
func (e Engine) AddEvidence(ctx context.Context, opts EvidenceOptions) (domain.Evidence, error) {
	if opts.Type == "" {
		opts.Type = "link"
	}
	if err := readiness.ValidateEvidence(opts.Title, opts.URL, opts.Type); err != nil {
		return domain.Evidence{}, err
	}
	if _, err := e.Repo.GetCheck(ctx, opts.CheckID); err != nil {
		return domain.Evidence{}, err
	}
	handoverID, err := e.Repo.HandoverIDForCheck(ctx, opts.CheckID)
	if err != nil {
		return domain.Evidence{}, err
	}
	ev := domain.Evidence{
		CheckID:     opts.CheckID,
		Title:       opts.Title,
		URL:         opts.URL,
		Type:        opts.Type,
		Description: opts.Description,
		Tags:        opts.Tags,
		UploadedBy:  opts.Actor.ID,
		CreatedAt:   e.nowStr(),
	}
	return e.insertEvidence(ctx, handoverID, ev, opts.Actor)
}

// FileEvidenceOptions are parameters for uploading file evidence.
type FileEvidenceOptions struct {
	CheckID     int64
	Filename    string
	Content     []byte
	ContentType string
	Title       string
	Description string
	Tags        []string
	Actor       domain.Actor
}

// AddEvidenceFile validates and stores an uploaded file, then attaches it as
// evidence. Images become screenshot evidence, everything else a document.
func (e Engine) AddEvidenceFile(ctx context.Context, opts FileEvidenceOptions) (domain.Evidence, error) {
	if e.Store == nil {
		return domain.Evidence{}, errors.New("file storage not configured")
	}
	if strings.TrimSpace(opts.Title) == "" {
		opts.Title = opts.Filename
	}
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Evidence{}, readiness.ValidationError{Field: "title", Reason: "must not be blank"}
	}
	if err := storage.ValidateFile(opts.Filename, int64(len(opts.Content)), opts.ContentType, e.MaxFileSize()); err != nil {
		return domain.Evidence{}, readiness.ValidationError{Field: "file", Reason: err.Error()}
	}
	if _, err := e.Repo.GetCheck(ctx, opts.CheckID); err != nil {
		return domain.Evidence{}, err
	}
	handoverID, err := e.Repo.HandoverIDForCheck(ctx, opts.CheckID)
	if err != nil {
		return domain.Evidence{}, err
	}
	storePath := storage.EvidencePath(handoverID, opts.CheckID, e.now(), opts.Filename)
	info, err := e.Store.Upload(ctx, storePath, opts.Content, opts.ContentType)
	if err != nil {
		return domain.Evidence{}, fmt.Errorf("store file: %w", err)
	}
	evType := "document"
	var thumb string
	if storage.IsImage(opts.ContentType) {
		evType = "screenshot"
		thumb = storage.ThumbnailPath(storePath)
	}
	ev := domain.Evidence{
		CheckID:       opts.CheckID,
		Title:         opts.Title,
		URL:           info.URL,
		Type:          evType,
		Description:   opts.Description,
		Tags:          opts.Tags,
		FilePath:      info.Path,
		FileSize:      info.Size,
		ThumbnailPath: thumb,
		UploadedBy:    opts.Actor.ID,
		CreatedAt:     e.nowStr(),
	}
	out, err := e.insertEvidence(ctx, handoverID, ev, opts.Actor)
	if err != nil {
		_ = e.Store.Delete(ctx, storePath)
		return domain.Evidence{}, err
	}
	return out, nil
}

func (e Engine) insertEvidence(ctx context.Context, handoverID int64, ev domain.Evidence, actor domain.Actor) (domain.Evidence, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ev, err
	}
	defer tx.Rollback()
	ev.ID, err = e.Repo.InsertEvidenceTx(ctx, tx, ev)
	if err != nil {
		return ev, err
	}
	if err := e.Events.Append(ctx, tx, "evidence.added", handoverID, "evidence", idStr(ev.ID), actor.ID, events.EventPayload{
		"check_id": ev.CheckID,
		"type":     ev.Type,
	}); err != nil {
		return ev, err
	}
	if err := tx.Commit(); err != nil {
		return ev, err
	}
	return ev, nil
}

// RemoveEvidence deletes an evidence record and any stored file behind it.
func (e Engine) RemoveEvidence(ctx context.Context, id int64, actor domain.Actor) error {
	ev, err := e.Repo.GetEvidence(ctx, id)
	if err != nil {
		return err
	}
	handoverID, err := e.Repo.HandoverIDForCheck(ctx, ev.CheckID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteEvidenceTx(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "evidence.removed", handoverID, "evidence", idStr(id), actor.ID, events.EventPayload{"check_id": ev.CheckID}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if e.Store != nil && ev.FilePath != "" {
		_ = e.Store.Delete(ctx, ev.FilePath)
		if ev.ThumbnailPath != "" {
			_ = e.Store.Delete(ctx, ev.ThumbnailPath)
		}
	}
	return nil
}

// --- go-live decisions ---

// DecisionOptions returns the selectable go-live decisions for a handover's
// current state.
func (e Engine) DecisionOptions(ctx context.Context, handoverID int64) ([]readiness.DecisionOption, error) {
	h, err := e.Repo.HandoverTree(ctx, handoverID)
	if err != nil {
		return nil, err
	}
	return readiness.DecisionOptions(h), nil
}

// RecordDecision validates and records a go-live decision, moving the
// handover to the status the decision implies.
func (e Engine) RecordDecision(ctx context.Context, handoverID int64, in readiness.DecisionInput, actor domain.Actor) (domain.DecisionRecord, error) {
	h, err := e.Repo.HandoverTree(ctx, handoverID)
	if err != nil {
		return domain.DecisionRecord{}, err
	}
	if err := readiness.ValidateDecision(h, in); err != nil {
		return domain.DecisionRecord{}, err
	}
	rec := domain.DecisionRecord{
		HandoverID:       handoverID,
		Decision:         string(in.Decision),
		Justification:    in.Justification,
		RiskAcknowledged: in.RiskAcknowledged,
		DecidedBy:        actor.ID,
		CreatedAt:        e.nowStr(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return rec, err
	}
	defer tx.Rollback()
	rec.ID, err = e.Repo.InsertDecisionTx(ctx, tx, rec)
	if err != nil {
		return rec, err
	}
	if err := e.Repo.SetHandoverStateTx(ctx, tx, handoverID, readiness.StatusFor(in.Decision), h.Score, e.nowStr()); err != nil {
		return rec, err
	}
	if err := e.Events.Append(ctx, tx, "golive.decided", handoverID, "decision", idStr(rec.ID), actor.ID, events.EventPayload{
		"decision": rec.Decision,
	}); err != nil {
		return rec, err
	}
	if err := tx.Commit(); err != nil {
		return rec, err
	}
	return rec, nil
}

// ListDecisions returns a handover's decision history, newest first.
func (e Engine) ListDecisions(ctx context.Context, handoverID int64) ([]domain.DecisionRecord, error) {
	if _, err := e.Repo.GetHandover(ctx, handoverID); err != nil {
		return nil, err
	}
	return e.Repo.ListDecisions(ctx, handoverID)
}

// --- analytics ---

// AnalyticsReport bundles the portfolio metrics views.
type AnalyticsReport struct {
	Summary   readiness.Summary       `json:"summary"`
	Histogram []readiness.ScoreBucket `json:"score_histogram"`
	Trend     []readiness.TrendPoint  `json:"monthly_trend"`
}

// Analytics computes portfolio metrics over the matching handovers.
func (e Engine) Analytics(ctx context.Context, f repo.HandoverFilters) (AnalyticsReport, error) {
	trees, err := e.Repo.ListHandoverTrees(ctx, f)
	if err != nil {
		return AnalyticsReport{}, err
	}
	return AnalyticsReport{
		Summary:   readiness.Summarize(trees),
		Histogram: readiness.ScoreHistogram(trees),
		Trend:     readiness.MonthlyTrend(trees),
	}, nil
}

// --- derived state ---

// recomputeHandover rewrites a handover's derived status and score from its
// checks. Reads go through the open transaction so in-flight mutations are
// visible.
func (e Engine) recomputeHandover(ctx context.Context, tx *sql.Tx, handoverID int64) error {
	rows, err := tx.QueryContext(ctx, `SELECT c.status, c.requires_approval, COALESCE(c.approval_status,'')
		FROM checks c JOIN domains d ON d.id = c.domain_id WHERE d.handover_id = ?`, handoverID)
	if err != nil {
		return err
	}
	defer rows.Close()
	var checks []domain.Check
	for rows.Next() {
		var c domain.Check
		var requires int
		if err := rows.Scan(&c.Status, &requires, &c.ApprovalStatus); err != nil {
			return err
		}
		c.RequiresApproval = requires != 0
		checks = append(checks, c)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	h := domain.Handover{Domains: []domain.Domain{{Checks: checks}}}
	return e.Repo.SetHandoverStateTx(ctx, tx, handoverID, readiness.DeriveStatus(h), readiness.Score(h), e.nowStr())
}
