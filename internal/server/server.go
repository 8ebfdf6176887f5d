// Package server exposes the case workflow over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"caseline/internal/domain"
	"caseline/internal/engine"
	"caseline/internal/engine/gate"
	"caseline/internal/repo"
	"caseline/internal/stage"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_state_transition"`
	Message string         `json:"message" example:"stage prd requires status [PRD_REVIEW], case is PRD_DRAFTING"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Caseline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Caseline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerCases(group, cfg.Engine)
	registerStages(group, cfg.Engine)
	registerJobs(group, cfg.Engine)
	registerSettings(group, cfg.Engine)
	registerRoles(group, cfg.Engine)
	registerKeys(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

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
	var fe gate.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"stage": string(fe.Stage)})
	}
	var te engine.InvalidTransitionError
	if errors.As(err, &te) {
		return newAPIError(http.StatusConflict, "invalid_state_transition", err.Error(), map[string]any{
			"stage":  string(te.Stage),
			"status": string(te.Actual),
		})
	}
	if errors.Is(err, repo.ErrStaleCase) {
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "unknown stage"),
		strings.Contains(lowered, "invalid"),
		strings.Contains(lowered, "required"),
		strings.Contains(lowered, "no artifact"),
		strings.Contains(lowered, "no submit step"),
		strings.Contains(lowered, "already"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
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
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func actorFromRequest(ctx context.Context) (gate.Actor, huma.StatusError) {
	p, err := actorFromContext(ctx)
	if err != nil {
		return gate.Actor{}, err
	}
	return gate.Actor{ID: p.ActorID, Roles: p.Roles}, nil
}

func requireAdmin(ctx context.Context, e engine.Engine) (gate.Actor, huma.StatusError) {
	actor, authErr := actorFromRequest(ctx)
	if authErr != nil {
		return gate.Actor{}, authErr
	}
	if actor.HasRole(domain.RoleAdmin) {
		return actor, nil
	}
	granted, err := e.Repo.ActorRoles(ctx, actor.ID)
	if err != nil {
		return gate.Actor{}, handleError(err)
	}
	for _, r := range granted {
		if r == domain.RoleAdmin {
			return actor, nil
		}
	}
	return gate.Actor{}, newAPIError(http.StatusForbidden, "forbidden", "admin role required", nil)
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
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

func registerCases(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-case",
		Method:        http.MethodPost,
		Path:          "/cases",
		Summary:       "Create business case",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateCaseRequest `json:"body"`
	}) (*struct {
		Body CaseOutcomeResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, out, err := e.CreateCase(ctx, engine.CreateCaseOptions{
			UserID:           actor.ID,
			Title:            input.Body.Title,
			ProblemStatement: input.Body.ProblemStatement,
			RelevantLinks:    input.Body.RelevantLinks,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CaseOutcomeResponse `json:"body"`
		}{Body: CaseOutcomeResponse{Case: c, Outcome: out}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-cases",
		Method:      http.MethodGet,
		Path:        "/cases",
		Summary:     "List own business cases",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.BusinessCase `json:"body"`
	}, error) {
		actor, authErr := actorFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListCases(ctx, actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.BusinessCase `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-case",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}",
		Summary:     "Get business case",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct {
		Body domain.BusinessCase `json:"body"`
	}, error) {
		actor, authErr := actorFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.GetCase(ctx, input.CaseID, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.BusinessCase `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-case-history",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/history",
		Summary:     "Get case history",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct {
		Body []domain.HistoryEntry `json:"body"`
	}, error) {
		actor, authErr := actorFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.GetCase(ctx, input.CaseID, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.HistoryEntry `json:"body"`
		}{Body: c.History}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-case-intake",
		Method:      http.MethodPatch,
		Path:        "/cases/{case_id}",
		Summary:     "Update intake fields (does not change workflow state)",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		CaseID string            `path:"case_id"`
		Body   UpdateCaseRequest `json:"body"`
	}) (*struct {
		Body domain.BusinessCase `json:"body"`
	}, error) {
		actor, authErr := actorFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.UpdateIntake(ctx, engine.UpdateIntakeOptions{
			CaseID:           input.CaseID,
			Actor:            actor,
			Title:            input.Body.Title,
			ProblemStatement: input.Body.ProblemStatement,
			RelevantLinks:    input.Body.RelevantLinks,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.BusinessCase `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-case-artifact",
		Method:      http.MethodPut,
		Path:        "/cases/{case_id}/artifacts/{stage}",
		Summary:     "Replace a stage artifact with an owner edit",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		CaseID  string `path:"case_id"`
		Stage   string `path:"stage"`
		RawBody []byte `contentType:"application/json"`
	}) (*struct {
		Body domain.BusinessCase `json:"body"`
	}, error) {
		actor, authErr := actorFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		st, err := stage.Parse(input.Stage)
		if err != nil {
			return nil, handleError(err)
		}
		artifact, err := decodeArtifact(st, input.RawBody)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		c, err := e.UpdateArtifact(ctx, engine.UpdateArtifactOptions{
			CaseID:   input.CaseID,
			Stage:    st,
			Actor:    actor,
			Artifact: artifact,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.BusinessCase `json:"body"`
		}{Body: c}, nil
	})
}

func registerStages(api huma.API, e engine.Engine) {
	type stagePath struct {
		CaseID string `path:"case_id"`
		Stage  string `path:"stage"`
	}
	stageErrors := []int{
		http.StatusBadRequest,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusConflict,
	}

	huma.Register(api, huma.Operation{
		OperationID: "submit-stage",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/stages/{stage}/submit",
		Summary:     "Submit a stage artifact for review",
		Errors:      stageErrors,
	}, func(ctx context.Context, input *stagePath) (*struct {
		Body engine.Outcome `json:"body"`
	}, error) {
		actor, authErr := actorFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		st, err := stage.Parse(input.Stage)
		if err != nil {
			return nil, handleError(err)
		}
		out, err := e.SubmitForReview(ctx, engine.SubmitOptions{CaseID: input.CaseID, Stage: st, Actor: actor})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Outcome `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-stage",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/stages/{stage}/approve",
		Summary:     "Approve a stage",
		Errors:      stageErrors,
	}, func(ctx context.Context, input *stagePath) (*struct {
		Body engine.Outcome `json:"body"`
	}, error) {
		actor, authErr := actorFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		st, err := stage.Parse(input.Stage)
		if err != nil {
			return nil, handleError(err)
		}
		out, err := e.Approve(ctx, engine.ApproveOptions{CaseID: input.CaseID, Stage: st, Actor: actor})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Outcome `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-stage",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/stages/{stage}/reject",
		Summary:     "Reject a stage",
		Errors:      stageErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string        `path:"case_id"`
		Stage  string        `path:"stage"`
		Body   RejectRequest `json:"body"`
	}) (*struct {
		Body engine.Outcome `json:"body"`
	}, error) {
		actor, authErr := actorFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		st, err := stage.Parse(input.Stage)
		if err != nil {
			return nil, handleError(err)
		}
		out, err := e.Reject(ctx, engine.RejectOptions{
			CaseID: input.CaseID,
			Stage:  st,
			Actor:  actor,
			Reason: input.Body.Reason,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Outcome `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "retry-generation",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/stages/{stage}/retry",
		Summary:     "Retry a failed generation step",
		Errors:      stageErrors,
	}, func(ctx context.Context, input *stagePath) (*struct {
		Body engine.Outcome `json:"body"`
	}, error) {
		actor, authErr := actorFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		st, err := stage.Parse(input.Stage)
		if err != nil {
			return nil, handleError(err)
		}
		out, err := e.RetryGeneration(ctx, engine.RetryOptions{CaseID: input.CaseID, Target: st, Actor: actor})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Outcome `json:"body"`
		}{Body: out}, nil
	})
}

func registerJobs(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "start-job",
		Method:        http.MethodPost,
		Path:          "/jobs",
		Summary:       "Start an async case-generation job",
		DefaultStatus: http.StatusAccepted,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateCaseRequest `json:"body"`
	}) (*struct {
		Body domain.Job `json:"body"`
	}, error) {
		actor, authErr := actorFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.CreateCaseOptions{
			UserID:           actor.ID,
			Title:            input.Body.Title,
			ProblemStatement: input.Body.ProblemStatement,
			RelevantLinks:    input.Body.RelevantLinks,
		}
		if opts.Title == "" || opts.ProblemStatement == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title and problem_statement are required", nil)
		}
		j, err := e.StartCaseJob(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		// Detach from the request context; the job outlives the request.
		go func() {
			if _, err := e.RunCaseJob(context.Background(), j.ID, opts); err != nil {
				logger := e.Log
				if logger == nil {
					logger = log.Default()
				}
				logger.Printf("job %s: %v", j.ID, err)
			}
		}()
		return &struct {
			Body domain.Job `json:"body"`
		}{Body: j}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/jobs/{job_id}",
		Summary:     "Poll a job",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		JobID string `path:"job_id"`
	}) (*struct {
		Body domain.Job `json:"body"`
	}, error) {
		actor, authErr := actorFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		j, err := e.Repo.GetJob(ctx, input.JobID)
		if err != nil {
			return nil, handleError(err)
		}
		if j.UserID != actor.ID && !actor.HasRole(domain.RoleAdmin) {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "not your job", nil)
		}
		return &struct {
			Body domain.Job `json:"body"`
		}{Body: j}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/jobs",
		Summary:     "List own jobs",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Job `json:"body"`
	}, error) {
		actor, authErr := actorFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		jobs, err := e.Repo.ListJobs(ctx, actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Job `json:"body"`
		}{Body: jobs}, nil
	})
}

func registerSettings(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-final-approver-role",
		Method:      http.MethodGet,
		Path:        "/settings/final-approver-role",
		Summary:     "Get the configured final approver role",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body SettingResponse `json:"body"`
	}, error) {
		if _, err := requireAdmin(ctx, e); err != nil {
			return nil, err
		}
		role, err := e.Gate.FinalApproverRole(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SettingResponse `json:"body"`
		}{Body: SettingResponse{Key: repo.SettingFinalApproverRole, Value: role}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-final-approver-role",
		Method:      http.MethodPut,
		Path:        "/settings/final-approver-role",
		Summary:     "Set the final approver role (takes effect for subsequent calls)",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body SettingRequest `json:"body"`
	}) (*struct {
		Body SettingResponse `json:"body"`
	}, error) {
		if _, err := requireAdmin(ctx, e); err != nil {
			return nil, err
		}
		if input.Body.Value == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "value is required", nil)
		}
		if err := e.Gate.SetFinalApproverRole(ctx, input.Body.Value); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SettingResponse `json:"body"`
		}{Body: SettingResponse{Key: repo.SettingFinalApproverRole, Value: input.Body.Value}}, nil
	})
}

func registerRoles(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "grant-role",
		Method:        http.MethodPost,
		Path:          "/roles",
		Summary:       "Grant a role to an actor",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body RoleGrantRequest `json:"body"`
	}) (*struct {
		Body domain.RoleGrant `json:"body"`
	}, error) {
		if _, err := requireAdmin(ctx, e); err != nil {
			return nil, err
		}
		if input.Body.ActorID == "" || input.Body.Role == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id and role are required", nil)
		}
		if err := e.Repo.GrantRole(ctx, input.Body.ActorID, input.Body.Role); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RoleGrant `json:"body"`
		}{Body: domain.RoleGrant{ActorID: input.Body.ActorID, Role: input.Body.Role}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "revoke-role",
		Method:      http.MethodDelete,
		Path:        "/roles/{actor_id}/{role}",
		Summary:     "Revoke a role from an actor",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActorID string `path:"actor_id"`
		Role    string `path:"role"`
	}) (*struct{}, error) {
		if _, err := requireAdmin(ctx, e); err != nil {
			return nil, err
		}
		if err := e.Repo.RevokeRole(ctx, input.ActorID, input.Role); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/keys",
		Summary:       "Create an API key (raw key returned once)",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body CreateAPIKeyResponse `json:"body"`
	}, error) {
		if _, err := requireAdmin(ctx, e); err != nil {
			return nil, err
		}
		if input.Body.ActorID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		rawKey, err := repo.NewRawAPIKey()
		if err != nil {
			return nil, handleError(err)
		}
		key, err := e.Repo.CreateAPIKey(ctx, input.Body.ActorID, input.Body.Name, rawKey)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CreateAPIKeyResponse `json:"body"`
		}{Body: CreateAPIKeyResponse{
			ID:      key.ID,
			ActorID: key.ActorID,
			Name:    key.Name,
			Key:     rawKey,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-api-key",
		Method:      http.MethodDelete,
		Path:        "/keys/{key_id}",
		Summary:     "Delete an API key",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		KeyID string `path:"key_id"`
	}) (*struct{}, error) {
		if _, err := requireAdmin(ctx, e); err != nil {
			return nil, err
		}
		if err := e.Repo.DeleteAPIKey(ctx, input.KeyID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Caseline API Docs</title>
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
