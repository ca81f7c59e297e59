package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/kanwarsx-prog/opsHandover/internal/domain"
	"github.com/kanwarsx-prog/opsHandover/internal/engine"
	"github.com/kanwarsx-prog/opsHandover/internal/readiness"
	"github.com/kanwarsx-prog/opsHandover/internal/repo"
	"github.com/kanwarsx-prog/opsHandover/internal/templates"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	FilesDir string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"approval_gate"`
	Message string         `json:"message" example:"check requires an approved decision before it can be Ready"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"guard\":\"approval gate\"}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the handover API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the requested envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("OpsHandover API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerHandovers(group, cfg.Engine)
	registerDomains(group, cfg.Engine)
	registerChecks(group, cfg.Engine)
	registerApprovals(group, cfg.Engine)
	registerEvidence(group, cfg.Engine)
	registerDecisions(group, cfg.Engine)
	registerAnalytics(group, cfg.Engine)
	registerTemplates(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerMe(group)
	registerFileRoutes(router, basePath, cfg)
	registerAnalyticsExport(router, basePath, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var verr readiness.ValidationError
	if errors.As(err, &verr) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": verr.Field, "reason": verr.Reason})
	}
	var perr readiness.PreconditionError
	if errors.As(err, &perr) {
		if perr.Guard == "approver authorization" {
			return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"guard": perr.Guard})
		}
		return newAPIError(http.StatusUnprocessableEntity, "precondition_failed", err.Error(), map[string]any{"guard": perr.Guard})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "precondition_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var once sync.Once
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>OpsHandover API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerHandovers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-handover",
		Method:        http.MethodPost,
		Path:          "/handovers",
		Summary:       "Create handover",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateHandoverRequest `json:"body"`
	}) (*struct {
		Body HandoverResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		h, err := e.CreateHandover(ctx, engine.HandoverCreateOptions{
			Name:        input.Body.Name,
			Type:        input.Body.Type,
			Description: input.Body.Description,
			Lead:        input.Body.Lead,
			Owner:       input.Body.Owner,
			TargetDate:  input.Body.TargetDate,
			TemplateID:  input.Body.TemplateID,
			NoTemplate:  input.Body.NoTemplate,
			Actor:       actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body HandoverResponse `json:"body"`
		}{Body: handoverResponse(h, e.Now())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-handovers",
		Method:      http.MethodGet,
		Path:        "/handovers",
		Summary:     "List handovers",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Status   string `query:"status" enum:"Ready,At Risk,Not Ready,"`
		Type     string `query:"type" enum:"cloud,product,legacy,human,"`
		DateFrom string `query:"date_from"`
		DateTo   string `query:"date_to"`
	}) (*struct {
		Body []HandoverResponse `json:"body"`
	}, error) {
		items, err := e.ListHandovers(ctx, repo.HandoverFilters{
			Status:   domain.Status(input.Status),
			Type:     input.Type,
			DateFrom: input.DateFrom,
			DateTo:   input.DateTo,
		})
		if err != nil {
			return nil, handleError(err)
		}
		// list rows carry no child detail; fetch trees so the derived
		// presentation fields are honest
		now := e.Now()
		out := make([]HandoverResponse, 0, len(items))
		for _, h := range items {
			tree, err := e.Repo.HandoverTree(ctx, h.ID)
			if err != nil {
				return nil, handleError(err)
			}
			res := handoverResponse(tree, now)
			res.Domains = nil
			out = append(out, res)
		}
		return &struct {
			Body []HandoverResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-handover",
		Method:      http.MethodGet,
		Path:        "/handovers/{handover_id}",
		Summary:     "Get handover",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		HandoverID int64 `path:"handover_id"`
	}) (*struct {
		Body HandoverResponse `json:"body"`
	}, error) {
		h, err := e.GetHandover(ctx, input.HandoverID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body HandoverResponse `json:"body"`
		}{Body: handoverResponse(h, e.Now())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-handover",
		Method:      http.MethodPatch,
		Path:        "/handovers/{handover_id}",
		Summary:     "Update handover fields",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		HandoverID int64                 `path:"handover_id"`
		Body       UpdateHandoverRequest `json:"body"`
	}) (*struct {
		Body HandoverResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		h, err := e.UpdateHandover(ctx, input.HandoverID, repo.HandoverFieldUpdates{
			Name:        input.Body.Name,
			Description: input.Body.Description,
			Lead:        input.Body.Lead,
			Owner:       input.Body.Owner,
			TargetDate:  input.Body.TargetDate,
		}, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body HandoverResponse `json:"body"`
		}{Body: handoverResponse(h, e.Now())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-handover",
		Method:        http.MethodDelete,
		Path:          "/handovers/{handover_id}",
		Summary:       "Delete handover",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		HandoverID int64 `path:"handover_id"`
	}) (*struct{}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteHandover(ctx, input.HandoverID, actor); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "handover-status",
		Method:      http.MethodGet,
		Path:        "/handovers/{handover_id}/status",
		Summary:     "Readiness rollup and decision options",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		HandoverID int64 `path:"handover_id"`
	}) (*struct {
		Body HandoverStatusResponse `json:"body"`
	}, error) {
		h, err := e.GetHandover(ctx, input.HandoverID)
		if err != nil {
			return nil, handleError(err)
		}
		signals := readiness.Signals(h)
		res := HandoverStatusResponse{
			ID:              h.ID,
			Name:            h.Name,
			Status:          h.Status,
			Score:           h.Score,
			Signals:         signals,
			Risk:            readiness.SummarizeRisk(signals.Blockers+signals.Risks, h.Status),
			DecisionOptions: readiness.DecisionOptions(h),
		}
		latest, err := e.Repo.LatestDecision(ctx, h.ID)
		if err == nil {
			res.LatestDecision = &latest
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, handleError(err)
		}
		return &struct {
			Body HandoverStatusResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerDomains(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-domain",
		Method:        http.MethodPost,
		Path:          "/handovers/{handover_id}/domains",
		Summary:       "Add domain",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		HandoverID int64               `path:"handover_id"`
		Body       CreateDomainRequest `json:"body"`
	}) (*struct {
		Body domain.Domain `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.AddDomain(ctx, input.HandoverID, input.Body.Title, input.Body.Description, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Domain `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-domain",
		Method:      http.MethodPatch,
		Path:        "/domains/{domain_id}",
		Summary:     "Update domain",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		DomainID string              `path:"domain_id"`
		Body     UpdateDomainRequest `json:"body"`
	}) (*struct {
		Body domain.Domain `json:"body"`
	}, error) {
		id, err := requireID(readiness.KindDomain, input.DomainID, "domain_id")
		if err != nil {
			return nil, err
		}
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, derr := e.UpdateDomain(ctx, id, input.Body.Title, input.Body.Description, actor)
		if derr != nil {
			return nil, handleError(derr)
		}
		return &struct {
			Body domain.Domain `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-domain",
		Method:      http.MethodPost,
		Path:        "/domains/{domain_id}/move",
		Summary:     "Reposition domain",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		DomainID string      `path:"domain_id"`
		Body     MoveRequest `json:"body"`
	}) (*struct{}, error) {
		id, err := requireID(readiness.KindDomain, input.DomainID, "domain_id")
		if err != nil {
			return nil, err
		}
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.MoveDomain(ctx, id, input.Body.Position, actor); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-domain",
		Method:        http.MethodDelete,
		Path:          "/domains/{domain_id}",
		Summary:       "Delete domain",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		DomainID string `path:"domain_id"`
	}) (*struct{}, error) {
		id, err := requireID(readiness.KindDomain, input.DomainID, "domain_id")
		if err != nil {
			return nil, err
		}
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteDomain(ctx, id, actor); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerChecks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-check",
		Method:        http.MethodPost,
		Path:          "/domains/{domain_id}/checks",
		Summary:       "Add check",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		DomainID string             `path:"domain_id"`
		Body     CreateCheckRequest `json:"body"`
	}) (*struct {
		Body domain.Check `json:"body"`
	}, error) {
		id, err := requireID(readiness.KindDomain, input.DomainID, "domain_id")
		if err != nil {
			return nil, err
		}
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, cerr := e.AddCheck(ctx, engine.CheckCreateOptions{
			DomainID:         id,
			Title:            input.Body.Title,
			Owner:            input.Body.Owner,
			RequiresApproval: input.Body.RequiresApproval,
			Actor:            actor,
		})
		if cerr != nil {
			return nil, handleError(cerr)
		}
		return &struct {
			Body domain.Check `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-check",
		Method:      http.MethodGet,
		Path:        "/checks/{check_id}",
		Summary:     "Get check with approvals and evidence",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		CheckID string `path:"check_id"`
	}) (*struct {
		Body domain.Check `json:"body"`
	}, error) {
		id, err := requireID(readiness.KindCheck, input.CheckID, "check_id")
		if err != nil {
			return nil, err
		}
		c, cerr := e.Repo.GetCheck(ctx, id)
		if cerr != nil {
			return nil, handleError(cerr)
		}
		if c.Approvals, cerr = e.Repo.ListApprovals(ctx, id); cerr != nil {
			return nil, handleError(cerr)
		}
		if c.Evidence, cerr = e.Repo.ListEvidence(ctx, id); cerr != nil {
			return nil, handleError(cerr)
		}
		return &struct {
			Body domain.Check `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-check",
		Method:      http.MethodPatch,
		Path:        "/checks/{check_id}",
		Summary:     "Update check",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		CheckID string             `path:"check_id"`
		Body    UpdateCheckRequest `json:"body"`
	}) (*struct {
		Body domain.Check `json:"body"`
	}, error) {
		id, err := requireID(readiness.KindCheck, input.CheckID, "check_id")
		if err != nil {
			return nil, err
		}
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.CheckUpdateOptions{
			ID:               id,
			Title:            input.Body.Title,
			Owner:            input.Body.Owner,
			BlockerReason:    input.Body.BlockerReason,
			RequiresApproval: input.Body.RequiresApproval,
			Actor:            actor,
		}
		if input.Body.Status != nil {
			s := domain.Status(*input.Body.Status)
			opts.Status = &s
		}
		c, cerr := e.UpdateCheck(ctx, opts)
		if cerr != nil {
			return nil, handleError(cerr)
		}
		return &struct {
			Body domain.Check `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-check",
		Method:      http.MethodPost,
		Path:        "/checks/{check_id}/move",
		Summary:     "Reposition check",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		CheckID string      `path:"check_id"`
		Body    MoveRequest `json:"body"`
	}) (*struct{}, error) {
		id, err := requireID(readiness.KindCheck, input.CheckID, "check_id")
		if err != nil {
			return nil, err
		}
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.MoveCheck(ctx, id, input.Body.Position, actor); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-check",
		Method:        http.MethodDelete,
		Path:          "/checks/{check_id}",
		Summary:       "Delete check",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		CheckID string `path:"check_id"`
	}) (*struct{}, error) {
		id, err := requireID(readiness.KindCheck, input.CheckID, "check_id")
		if err != nil {
			return nil, err
		}
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteCheck(ctx, id, actor); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerApprovals(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "record-approval",
		Method:        http.MethodPost,
		Path:          "/checks/{check_id}/approvals",
		Summary:       "Record approval decision",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		CheckID string                `path:"check_id"`
		Body    RecordApprovalRequest `json:"body"`
	}) (*struct {
		Body domain.Approval `json:"body"`
	}, error) {
		id, err := requireID(readiness.KindCheck, input.CheckID, "check_id")
		if err != nil {
			return nil, err
		}
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, aerr := e.RecordApproval(ctx, engine.ApprovalOptions{
			CheckID:  id,
			Decision: input.Body.Decision,
			Comments: input.Body.Comments,
			Actor:    actor,
		})
		if aerr != nil {
			return nil, handleError(aerr)
		}
		return &struct {
			Body domain.Approval `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-approvals",
		Method:      http.MethodGet,
		Path:        "/checks/{check_id}/approvals",
		Summary:     "List approval history",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		CheckID string `path:"check_id"`
	}) (*struct {
		Body []domain.Approval `json:"body"`
	}, error) {
		id, err := requireID(readiness.KindCheck, input.CheckID, "check_id")
		if err != nil {
			return nil, err
		}
		if _, cerr := e.Repo.GetCheck(ctx, id); cerr != nil {
			return nil, handleError(cerr)
		}
		items, lerr := e.Repo.ListApprovals(ctx, id)
		if lerr != nil {
			return nil, handleError(lerr)
		}
		return &struct {
			Body []domain.Approval `json:"body"`
		}{Body: items}, nil
	})
}

func registerEvidence(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-evidence",
		Method:        http.MethodPost,
		Path:          "/checks/{check_id}/evidence",
		Summary:       "Attach link evidence",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		CheckID string                `path:"check_id"`
		Body    CreateEvidenceRequest `json:"body"`
	}) (*struct {
		Body domain.Evidence `json:"body"`
	}, error) {
		id, err := requireID(readiness.KindCheck, input.CheckID, "check_id")
		if err != nil {
			return nil, err
		}
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ev, everr := e.AddEvidence(ctx, engine.EvidenceOptions{
			CheckID:     id,
			Title:       input.Body.Title,
			URL:         input.Body.URL,
			Type:        input.Body.Type,
			Description: input.Body.Description,
			Tags:        input.Body.Tags,
			Actor:       actor,
		})
		if everr != nil {
			return nil, handleError(everr)
		}
		return &struct {
			Body domain.Evidence `json:"body"`
		}{Body: ev}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-evidence",
		Method:      http.MethodGet,
		Path:        "/checks/{check_id}/evidence",
		Summary:     "List evidence",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		CheckID string `path:"check_id"`
	}) (*struct {
		Body []domain.Evidence `json:"body"`
	}, error) {
		id, err := requireID(readiness.KindCheck, input.CheckID, "check_id")
		if err != nil {
			return nil, err
		}
		if _, cerr := e.Repo.GetCheck(ctx, id); cerr != nil {
			return nil, handleError(cerr)
		}
		items, lerr := e.Repo.ListEvidence(ctx, id)
		if lerr != nil {
			return nil, handleError(lerr)
		}
		return &struct {
			Body []domain.Evidence `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-evidence",
		Method:        http.MethodDelete,
		Path:          "/evidence/{evidence_id}",
		Summary:       "Delete evidence",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		EvidenceID string `path:"evidence_id"`
	}) (*struct{}, error) {
		id, err := requireID(readiness.KindEvidence, input.EvidenceID, "evidence_id")
		if err != nil {
			return nil, err
		}
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RemoveEvidence(ctx, id, actor); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerDecisions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "decision-options",
		Method:      http.MethodGet,
		Path:        "/handovers/{handover_id}/decision-options",
		Summary:     "Selectable go-live decisions",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		HandoverID int64 `path:"handover_id"`
	}) (*struct {
		Body []readiness.DecisionOption `json:"body"`
	}, error) {
		opts, err := e.DecisionOptions(ctx, input.HandoverID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []readiness.DecisionOption `json:"body"`
		}{Body: opts}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "record-decision",
		Method:        http.MethodPost,
		Path:          "/handovers/{handover_id}/decision",
		Summary:       "Record go-live decision",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		HandoverID int64                 `path:"handover_id"`
		Body       RecordDecisionRequest `json:"body"`
	}) (*struct {
		Body domain.DecisionRecord `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rec, err := e.RecordDecision(ctx, input.HandoverID, readiness.DecisionInput{
			Decision:         readiness.GoLiveDecision(input.Body.Decision),
			Justification:    input.Body.Justification,
			RiskAcknowledged: input.Body.RiskAcknowledged,
		}, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.DecisionRecord `json:"body"`
		}{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-decisions",
		Method:      http.MethodGet,
		Path:        "/handovers/{handover_id}/decisions",
		Summary:     "Decision history",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		HandoverID int64 `path:"handover_id"`
	}) (*struct {
		Body []domain.DecisionRecord `json:"body"`
	}, error) {
		items, err := e.ListDecisions(ctx, input.HandoverID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.DecisionRecord `json:"body"`
		}{Body: items}, nil
	})
}

func registerAnalytics(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "analytics",
		Method:      http.MethodGet,
		Path:        "/analytics",
		Summary:     "Portfolio analytics",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"Ready,At Risk,Not Ready,"`
		Type   string `query:"type" enum:"cloud,product,legacy,human,"`
	}) (*struct {
		Body engine.AnalyticsReport `json:"body"`
	}, error) {
		report, err := e.Analytics(ctx, repo.HandoverFilters{
			Status: domain.Status(input.Status),
			Type:   input.Type,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.AnalyticsReport `json:"body"`
		}{Body: report}, nil
	})
}

func registerTemplates(api huma.API, e engine.Engine) {
	type templateIndex struct {
		Builtin   []string                 `json:"builtin"`
		Libraries []domain.TemplateLibrary `json:"libraries"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "list-templates",
		Method:      http.MethodGet,
		Path:        "/templates",
		Summary:     "List templates",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body templateIndex `json:"body"`
	}, error) {
		libs, err := e.Repo.ListTemplateLibraries(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body templateIndex `json:"body"`
		}{Body: templateIndex{Builtin: templates.Types(), Libraries: libs}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "preview-builtin-template",
		Method:      http.MethodGet,
		Path:        "/templates/builtin/{type}",
		Summary:     "Preview builtin template",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Type string `path:"type"`
	}) (*struct {
		Body TemplatePreviewResponse `json:"body"`
	}, error) {
		tpl := templates.Builtin(input.Type)
		s := templates.Summarize(tpl)
		return &struct {
			Body TemplatePreviewResponse `json:"body"`
		}{Body: TemplatePreviewResponse{
			Type:    input.Type,
			Summary: templatesSummary{DomainCount: s.DomainCount, CheckCount: s.CheckCount},
			Domains: tpl,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-template",
		Method:        http.MethodPost,
		Path:          "/templates",
		Summary:       "Save template library",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateTemplateRequest `json:"body"`
	}) (*struct {
		Body domain.TemplateLibrary `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if strings.TrimSpace(input.Body.Name) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		if len(input.Body.Domains) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "domains are required", nil)
		}
		category := input.Body.Category
		if category == "" {
			category = "user"
		}
		lib := domain.TemplateLibrary{
			Name:        input.Body.Name,
			Description: input.Body.Description,
			Category:    category,
			CreatedBy:   actor.ID,
			CreatedAt:   e.Now().UTC().Format(time.RFC3339),
			Domains:     input.Body.Domains,
		}
		id, err := e.Repo.InsertTemplateLibrary(ctx, lib)
		if err != nil {
			return nil, handleError(err)
		}
		lib.ID = id
		return &struct {
			Body domain.TemplateLibrary `json:"body"`
		}{Body: lib}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-template",
		Method:      http.MethodGet,
		Path:        "/templates/{template_id}",
		Summary:     "Get template library",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		TemplateID int64 `path:"template_id"`
	}) (*struct {
		Body domain.TemplateLibrary `json:"body"`
	}, error) {
		lib, err := e.Repo.GetTemplateLibrary(ctx, input.TemplateID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TemplateLibrary `json:"body"`
		}{Body: lib}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-template",
		Method:        http.MethodDelete,
		Path:          "/templates/{template_id}",
		Summary:       "Delete template library",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		TemplateID int64 `path:"template_id"`
	}) (*struct{}, error) {
		if _, err := e.Repo.GetTemplateLibrary(ctx, input.TemplateID); err != nil {
			return nil, handleError(err)
		}
		if err := e.Repo.DeleteTemplateLibrary(ctx, input.TemplateID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Event log",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Cursor     string `query:"cursor"`
		Limit      int    `query:"limit"`
		HandoverID int64  `query:"handover_id"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		var cursor int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil || parsed < 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", nil)
			}
			cursor = parsed
		}
		limit := normalizeLimit(input.Limit)
		items, err := e.Repo.EventsAfter(ctx, limit, cursor, input.HandoverID)
		if err != nil {
			return nil, handleError(err)
		}
		res := paginatedEvents{Items: items}
		if len(items) == limit {
			res.NextCursor = strconv.FormatInt(items[len(items)-1].ID, 10)
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: res}, nil
	})
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Authenticated actor",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.Actor `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body domain.Actor `json:"body"`
		}{Body: actor}, nil
	})
}

// registerFileRoutes wires the multipart evidence upload and the stored-file
// download outside Huma; both deal in raw bytes.
func registerFileRoutes(router chi.Router, basePath string, cfg Config) {
	e := cfg.Engine
	router.Post(path.Join(basePath, "checks/{check_id}/evidence/file"), func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(readiness.KindCheck, chi.URLParam(r, "check_id"))
		if !ok {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "invalid check_id", nil))
			return
		}
		actor, authErr := actorFromContext(r.Context())
		if authErr != nil {
			respondStatusError(w, authErr)
			return
		}
		maxUpload := e.MaxFileSize()
		if err := r.ParseMultipartForm(maxUpload + 1<<20); err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "invalid multipart body", nil))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "file field required", nil))
			return
		}
		defer file.Close()
		content, err := io.ReadAll(io.LimitReader(file, maxUpload+1))
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "read upload failed", nil))
			return
		}
		contentType := header.Header.Get("Content-Type")
		var tags []string
		if raw := strings.TrimSpace(r.FormValue("tags")); raw != "" {
			for _, tag := range strings.Split(raw, ",") {
				if t := strings.TrimSpace(tag); t != "" {
					tags = append(tags, t)
				}
			}
		}
		ev, err := e.AddEvidenceFile(r.Context(), engine.FileEvidenceOptions{
			CheckID:     id,
			Filename:    header.Filename,
			Content:     content,
			ContentType: contentType,
			Title:       r.FormValue("title"),
			Description: r.FormValue("description"),
			Tags:        tags,
			Actor:       actor,
		})
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(ev)
	})

	if cfg.FilesDir != "" {
		fs := http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.FilesDir)))
		router.Get("/files/*", func(w http.ResponseWriter, r *http.Request) {
			fs.ServeHTTP(w, r)
		})
	}
}

// registerAnalyticsExport streams the metrics summary as CSV.
func registerAnalyticsExport(router chi.Router, basePath string, e engine.Engine) {
	router.Get(path.Join(basePath, "analytics/export.csv"), func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		report, err := e.Analytics(r.Context(), repo.HandoverFilters{
			Status: domain.Status(q.Get("status")),
			Type:   q.Get("type"),
		})
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="handover-metrics.csv"`)
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"Metric", "Value"})
		_ = cw.Write([]string{"Total Handovers", strconv.Itoa(report.Summary.TotalHandovers)})
		_ = cw.Write([]string{"Average Score", strconv.Itoa(report.Summary.AverageScore)})
		_ = cw.Write([]string{"Ready Percent", strconv.FormatFloat(report.Summary.ReadyPercent, 'f', 1, 64)})
		_ = cw.Write([]string{"Total Checks", strconv.Itoa(report.Summary.TotalChecks)})
		for _, status := range []domain.Status{domain.StatusReady, domain.StatusAtRisk, domain.StatusNotReady} {
			_ = cw.Write([]string{"Handovers " + string(status), strconv.Itoa(report.Summary.ByStatus[status])})
			_ = cw.Write([]string{"Checks " + string(status), strconv.Itoa(report.Summary.ChecksByStatus[status])})
		}
		for _, b := range report.Histogram {
			_ = cw.Write([]string{"Score " + b.Range, strconv.Itoa(b.Count)})
		}
		for _, p := range report.Trend {
			_ = cw.Write([]string{"Created " + p.Month, strconv.Itoa(p.Total)})
		}
		cw.Flush()
	})
}
