package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"kingdom/internal/domain"
	"kingdom/internal/engine"
	"kingdom/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"cooldown_active"`
	Message string         `json:"message" example:"coup cooldown is still active"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
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

// New returns an HTTP handler exposing the Kingdom API.
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
	hcfg := huma.DefaultConfig("Kingdom API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerActors(group, cfg.Engine)
	registerKingdoms(group, cfg.Engine)
	registerCoups(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerAPIKeys(group, cfg.Engine)
	registerDevAuth(group, cfg.Auth)
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

// coupErrorStatus maps each domain failure kind to its HTTP status.
// State conflicts are 409, unmet actor requirements are 422.
var coupErrorStatus = map[engine.ErrorCode]int{
	engine.CodeInsufficientReputation: http.StatusUnprocessableEntity,
	engine.CodeInsufficientGold:       http.StatusUnprocessableEntity,
	engine.CodeNotCheckedIn:           http.StatusUnprocessableEntity,
	engine.CodeAlreadyRuler:           http.StatusConflict,
	engine.CodeKingdomUnclaimed:       http.StatusConflict,
	engine.CodeCooldownActive:         http.StatusConflict,
	engine.CodeContestAlreadyActive:   http.StatusConflict,
	engine.CodeVotingClosed:           http.StatusConflict,
	engine.CodeAlreadyJoined:          http.StatusConflict,
	engine.CodeInvalidSide:            http.StatusBadRequest,
	engine.CodeNotYetResolvable:       http.StatusConflict,
	engine.CodeAlreadyResolved:        http.StatusConflict,
	engine.CodeContestNotFound:        http.StatusNotFound,
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ce *engine.CoupError
	if errors.As(err, &ce) {
		status, ok := coupErrorStatus[ce.Code]
		if !ok {
			status = http.StatusConflict
		}
		return newAPIError(status, string(ce.Code), ce.Message, nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required") || strings.Contains(lowered, "must be"):
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
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
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
	openPaths := map[string]bool{
		ensureLeadingSlash(path.Join(basePath, "health")):         true,
		ensureLeadingSlash(path.Join(basePath, "auth/dev/login")): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if openPaths[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func ensureLeadingSlash(p string) string {
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Kingdom API Docs</title>
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

func registerActors(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-actor",
		Method:        http.MethodPost,
		Path:          "/actors",
		Summary:       "Create actor",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateActorRequest `json:"body"`
	}) (*struct {
		Body ActorResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		opts := engine.ActorCreateOptions{
			Name:         input.Body.Name,
			Gold:         input.Body.Gold,
			Reputation:   input.Body.Reputation,
			AttackPower:  input.Body.AttackPower,
			DefensePower: input.Body.DefensePower,
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		a, err := e.CreateActor(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActorResponse `json:"body"`
		}{Body: actorResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-actors",
		Method:      http.MethodGet,
		Path:        "/actors",
		Summary:     "List actors",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ActorResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListActors(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]ActorResponse, 0, len(items))
		for _, a := range items {
			res = append(res, actorResponse(a))
		}
		return &struct {
			Body []ActorResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-actor",
		Method:      http.MethodGet,
		Path:        "/actors/{actor_id}",
		Summary:     "Get actor",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActorID string `path:"actor_id"`
	}) (*struct {
		Body ActorResponse `json:"body"`
	}, error) {
		a, err := e.Repo.GetActor(ctx, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActorResponse `json:"body"`
		}{Body: actorResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "checkin-actor",
		Method:      http.MethodPost,
		Path:        "/actors/{actor_id}/checkin",
		Summary:     "Check an actor into a kingdom",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ActorID string         `path:"actor_id"`
		Body    CheckInRequest `json:"body"`
	}) (*struct {
		Body ActorResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.KingdomID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "kingdom_id is required", nil)
		}
		a, err := e.CheckIn(ctx, input.ActorID, input.Body.KingdomID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActorResponse `json:"body"`
		}{Body: actorResponse(a)}, nil
	})
}

func registerKingdoms(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-kingdom",
		Method:        http.MethodPost,
		Path:          "/kingdoms",
		Summary:       "Create kingdom",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateKingdomRequest `json:"body"`
	}) (*struct {
		Body KingdomResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		opts := engine.KingdomCreateOptions{
			Name:               input.Body.Name,
			TreasuryGold:       input.Body.TreasuryGold,
			FortificationLevel: input.Body.FortificationLevel,
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		if input.Body.RulerID != nil {
			opts.RulerID = *input.Body.RulerID
		}
		k, err := e.CreateKingdom(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body KingdomResponse `json:"body"`
		}{Body: kingdomResponse(k)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-kingdoms",
		Method:      http.MethodGet,
		Path:        "/kingdoms",
		Summary:     "List kingdoms",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []KingdomResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListKingdoms(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]KingdomResponse, 0, len(items))
		for _, k := range items {
			res = append(res, kingdomResponse(k))
		}
		return &struct {
			Body []KingdomResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-kingdom",
		Method:      http.MethodGet,
		Path:        "/kingdoms/{kingdom_id}",
		Summary:     "Get kingdom",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		KingdomID string `path:"kingdom_id"`
	}) (*struct {
		Body KingdomResponse `json:"body"`
	}, error) {
		k, err := e.Repo.GetKingdom(ctx, input.KingdomID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body KingdomResponse `json:"body"`
		}{Body: kingdomResponse(k)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "claim-kingdom",
		Method:      http.MethodPost,
		Path:        "/kingdoms/{kingdom_id}/claim",
		Summary:     "Claim an unclaimed kingdom",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		KingdomID string `path:"kingdom_id"`
	}) (*struct {
		Body KingdomResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		k, err := e.ClaimKingdom(ctx, input.KingdomID, actorID)
		if err != nil {
			if strings.Contains(err.Error(), "already has a ruler") {
				return nil, newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
			}
			return nil, handleError(err)
		}
		return &struct {
			Body KingdomResponse `json:"body"`
		}{Body: kingdomResponse(k)}, nil
	})
}

func registerCoups(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "initiate-coup",
		Method:        http.MethodPost,
		Path:          "/kingdoms/{kingdom_id}/coups",
		Summary:       "Initiate a coup",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		KingdomID string `path:"kingdom_id"`
	}) (*struct {
		Body CoupResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.InitiateCoup(ctx, actorID, input.KingdomID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CoupResponse `json:"body"`
		}{Body: coupResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-coups",
		Method:      http.MethodGet,
		Path:        "/coups",
		Summary:     "List active coups",
	}, func(ctx context.Context, input *struct {
		KingdomID string `query:"kingdom_id"`
	}) (*struct {
		Body []engine.CoupSummary `json:"body"`
	}, error) {
		viewerID := ""
		if p, ok := principalFromContext(ctx); ok {
			viewerID = p.ActorID
		}
		items, err := e.ListActiveCoups(ctx, input.KingdomID, viewerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []engine.CoupSummary `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-coup",
		Method:      http.MethodGet,
		Path:        "/coups/{coup_id}",
		Summary:     "Get coup",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CoupID string `path:"coup_id"`
	}) (*struct {
		Body CoupResponse `json:"body"`
	}, error) {
		c, err := e.GetCoup(ctx, input.CoupID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CoupResponse `json:"body"`
		}{Body: coupResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "join-coup",
		Method:      http.MethodPost,
		Path:        "/coups/{coup_id}/join",
		Summary:     "Join a side of an open coup",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		CoupID string          `path:"coup_id"`
		Body   JoinCoupRequest `json:"body"`
	}) (*struct {
		Body CoupResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.JoinCoup(ctx, input.CoupID, actorID, domain.CoupSide(input.Body.Side))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CoupResponse `json:"body"`
		}{Body: coupResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-coup",
		Method:      http.MethodPost,
		Path:        "/coups/{coup_id}/resolve",
		Summary:     "Resolve a coup whose voting window has closed",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		CoupID string `path:"coup_id"`
	}) (*struct {
		Body ResolutionResponse `json:"body"`
	}, error) {
		res, err := e.ResolveCoup(ctx, input.CoupID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ResolutionResponse `json:"body"`
		}{Body: resolutionResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sweep-coups",
		Method:      http.MethodPost,
		Path:        "/coups/sweep",
		Summary:     "Resolve every coup past its voting window",
		Errors:      []int{http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []engine.SweepResult `json:"body"`
	}, error) {
		results, err := e.SweepExpired(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if results == nil {
			results = []engine.SweepResult{}
		}
		return &struct {
			Body []engine.SweepResult `json:"body"`
		}{Body: results}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		KingdomID string `query:"kingdom_id"`
		Type      string `query:"type"`
		Limit     int    `query:"limit" default:"50"`
		Cursor    string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.Repo.LatestEvents(ctx, limit+1, cursorID, input.KingdomID, input.Type)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Create API key",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body struct {
			ActorID string `json:"actor_id"`
			Name    string `json:"name,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.ActorID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		if _, err := e.Repo.GetActor(ctx, input.Body.ActorID); err != nil {
			return nil, handleError(err)
		}
		raw := uuid.New().String()
		key := domain.APIKey{
			ID:        uuid.New().String(),
			ActorID:   input.Body.ActorID,
			Name:      input.Body.Name,
			KeyHash:   repo.HashAPIKey(raw),
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		tx, err := e.DB.BeginTx(ctx, nil)
		if err != nil {
			return nil, handleError(err)
		}
		defer tx.Rollback()
		if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
			return nil, handleError(err)
		}
		if err := tx.Commit(); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: APIKeyResponse{
			ID:        key.ID,
			ActorID:   key.ActorID,
			Name:      key.Name,
			Key:       raw,
			CreatedAt: key.CreatedAt,
		}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if !authCfg.EnableDevLogin {
			return nil, newAPIError(http.StatusNotFound, "not_found", "dev login disabled", nil)
		}
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, actor, 24*time.Hour)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
