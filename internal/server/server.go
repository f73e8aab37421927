// Package server exposes the marketplace over HTTP. It is a thin adapter:
// every handler authenticates the caller, decodes the request and delegates
// to the lifecycle engine or review intake; no marketplace rule lives here.
package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"atelier/internal/auction"
	"atelier/internal/domain"
	"atelier/internal/ledger"
	"atelier/internal/lifecycle"
	"atelier/internal/repo"
	"atelier/internal/review"
	"atelier/internal/status"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   lifecycle.Engine
	Intake   review.Intake
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"conflict"`
	Message string         `json:"message" example:"operation not legal in current status"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError is the error envelope every endpoint returns.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Atelier API.
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
	hcfg := huma.DefaultConfig("Atelier API", "0.1.0")
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerStatus(group, cfg.Engine)
	registerAteliers(group, cfg.Engine)
	registerReview(group, cfg.Intake)
	registerLedger(group, cfg.Engine)
	registerHistory(group, cfg.Engine)
	registerKeys(group, cfg.Engine)

	startWebhookDispatcher(cfg.Engine, cfg.Engine.Log)

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
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, lifecycle.ErrForbidden), errors.Is(err, review.ErrWrongReviewer):
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), nil)
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return newAPIError(http.StatusPaymentRequired, "insufficient_funds", err.Error(), nil)
	case errors.Is(err, lifecycle.ErrWrongState),
		errors.Is(err, lifecycle.ErrAlreadyTerminal),
		errors.Is(err, lifecycle.ErrEscrowAttached),
		errors.Is(err, auction.ErrNotCandidate),
		errors.Is(err, auction.ErrLost):
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	case errors.Is(err, auction.ErrEmptyPool):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") ||
		strings.Contains(lowered, "missing") ||
		strings.Contains(lowered, "required") ||
		strings.Contains(lowered, "not allowed") ||
		strings.Contains(lowered, "duplicate") ||
		strings.Contains(lowered, "negative") ||
		strings.Contains(lowered, "out of range") ||
		strings.Contains(lowered, "exceeds") ||
		strings.Contains(lowered, "too many"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusPaymentRequired:
		return "insufficient_funds"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
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

func registerStatus(api huma.API, e lifecycle.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "marketplace-status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Atelier counts per status",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]int `json:"body"`
	}, error) {
		counts, err := e.Repo.CountAteliersByStatus(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]int `json:"body"`
		}{Body: counts}, nil
	})
}

func registerAteliers(api huma.API, e lifecycle.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-atelier",
		Method:        http.MethodPost,
		Path:          "/ateliers",
		Summary:       "Create atelier",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusPaymentRequired,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateAtelierRequest `json:"body"`
	}) (*struct {
		Body AtelierResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		original, err := base64.StdEncoding.DecodeString(input.Body.OriginalB64)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "original_b64 is not valid base64", nil)
		}
		if len(original) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "original_b64 is required", nil)
		}
		offers := make([]auction.Offer, 0, len(input.Body.Offers))
		for _, o := range input.Body.Offers {
			offers = append(offers, auction.Offer{ReviewerID: o.ReviewerID, Bounty: o.Bounty})
		}
		opts := lifecycle.CreateOptions{
			UploaderID: userID,
			GameID:     input.Body.GameID,
			Title:      input.Body.Title,
			Tags:       input.Body.Tags,
			IsPrivate:  input.Body.IsPrivate,
			MediaType:  input.Body.MediaType,
			Original:   bytes.NewReader(original),
			Offers:     offers,
		}
		if input.Body.Description != nil {
			opts.Description = *input.Body.Description
		}
		a, err := e.Create(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AtelierResponse `json:"body"`
		}{Body: atelierResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-ateliers",
		Method:      http.MethodGet,
		Path:        "/ateliers",
		Summary:     "List ateliers",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		UploaderID     string `query:"uploader_id"`
		ReviewerID     string `query:"reviewer_id"`
		GameID         string `query:"game_id"`
		Status         string `query:"status"`
		IncludeDeleted bool   `query:"include_deleted"`
		Limit          int    `query:"limit" default:"50"`
		Cursor         string `query:"cursor"`
	}) (*struct {
		Body paginatedAteliers `json:"body"`
	}, error) {
		if _, authErr := userIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		filter := repo.AtelierFilters{
			UploaderID:      input.UploaderID,
			ReviewerID:      input.ReviewerID,
			GameID:          input.GameID,
			IncludeDeleted:  input.IncludeDeleted,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		}
		if input.Status != "" {
			st, err := parseStatus(input.Status)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
			}
			filter.Status = &st
		}
		items, err := e.List(ctx, filter)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedAteliers{Items: []AtelierResponse{}}
		if len(items) > limit {
			resp.NextCursor = composeCursor(items[limit].CreatedAt, items[limit].ID)
			items = items[:limit]
		}
		resp.Items = mapAteliers(items)
		return &struct {
			Body paginatedAteliers `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-atelier",
		Method:      http.MethodGet,
		Path:        "/ateliers/{id}",
		Summary:     "Get atelier",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body AtelierResponse `json:"body"`
	}, error) {
		if _, authErr := userIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		a, err := e.Get(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AtelierResponse `json:"body"`
		}{Body: atelierResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-candidates",
		Method:      http.MethodGet,
		Path:        "/ateliers/{id}/candidates",
		Summary:     "List auction candidates",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []CandidateResponse `json:"body"`
	}, error) {
		if _, authErr := userIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if _, err := e.Get(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		cands, err := e.Candidates(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []CandidateResponse `json:"body"`
		}{Body: mapCandidates(cands)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "accept-offer",
		Method:      http.MethodPost,
		Path:        "/ateliers/{id}/accept",
		Summary:     "Accept a review offer",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body AtelierResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.Accept(ctx, input.ID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AtelierResponse `json:"body"`
		}{Body: atelierResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "decline-offer",
		Method:      http.MethodPost,
		Path:        "/ateliers/{id}/decline",
		Summary:     "Decline a review offer",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body AtelierResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.Decline(ctx, input.ID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AtelierResponse `json:"body"`
		}{Body: atelierResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-atelier",
		Method:      http.MethodPost,
		Path:        "/ateliers/{id}/cancel",
		Summary:     "Cancel atelier and release escrow",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body AtelierResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.Cancel(ctx, input.ID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AtelierResponse `json:"body"`
		}{Body: atelierResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-atelier",
		Method:      http.MethodDelete,
		Path:        "/ateliers/{id}",
		Summary:     "Hide a settled atelier",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body AtelierResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.Delete(ctx, input.ID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AtelierResponse `json:"body"`
		}{Body: atelierResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "fail-atelier",
		Method:      http.MethodPost,
		Path:        "/ateliers/{id}/fail",
		Summary:     "Mark atelier failed",
		Description: "Operator escape hatch: drives the atelier to an error status and releases escrow.",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID       string `path:"id"`
		Artifact bool   `query:"artifact" doc:"mark as media/mux failure instead of unknown error"`
		Body     FailureRequest
	}) (*struct {
		Body AtelierResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var err error
		if input.Artifact {
			err = e.MarkArtifactFailed(ctx, input.ID, userID, input.Body.Reason)
		} else {
			err = e.MarkError(ctx, input.ID, userID, input.Body.Reason)
		}
		if err != nil {
			return nil, handleError(err)
		}
		a, err := e.Get(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AtelierResponse `json:"body"`
		}{Body: atelierResponse(a)}, nil
	})
}

func registerReview(api huma.API, in review.Intake) {
	huma.Register(api, huma.Operation{
		OperationID: "start-review",
		Method:      http.MethodPost,
		Path:        "/ateliers/{id}/review/start",
		Summary:     "Start working on an assigned review",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body AtelierResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := in.Start(ctx, input.ID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AtelierResponse `json:"body"`
		}{Body: atelierResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-review",
		Method:      http.MethodPost,
		Path:        "/ateliers/{id}/review",
		Summary:     "Deliver the review and settle escrow",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body SubmitReviewRequest `json:"body"`
	}) (*struct {
		Body AtelierResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		data, err := base64.StdEncoding.DecodeString(input.Body.ReviewB64)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "review_b64 is not valid base64", nil)
		}
		if len(data) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "review_b64 is required", nil)
		}
		a, err := in.Submit(ctx, review.SubmitOptions{
			AtelierID:  input.ID,
			ReviewerID: userID,
			MediaType:  input.Body.MediaType,
			Review:     bytes.NewReader(data),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AtelierResponse `json:"body"`
		}{Body: atelierResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "score-review",
		Method:      http.MethodPost,
		Path:        "/ateliers/{id}/score",
		Summary:     "Score a delivered review",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string       `path:"id"`
		Body ScoreRequest `json:"body"`
	}) (*struct {
		Body AtelierResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := in.Score(ctx, input.ID, userID, input.Body.Score)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AtelierResponse `json:"body"`
		}{Body: atelierResponse(a)}, nil
	})
}

func registerLedger(api huma.API, e lifecycle.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-balance",
		Method:      http.MethodGet,
		Path:        "/ledger/balance",
		Summary:     "Get own coin balance",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body AccountResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		acct, err := e.Ledger.Balance(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AccountResponse `json:"body"`
		}{Body: accountResponse(acct)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deposit-coins",
		Method:      http.MethodPost,
		Path:        "/ledger/deposit",
		Summary:     "Deposit coins",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body AmountRequest `json:"body"`
	}) (*struct {
		Body AccountResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		acct, err := e.Ledger.Deposit(ctx, userID, input.Body.Amount)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AccountResponse `json:"body"`
		}{Body: accountResponse(acct)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "redeem-coins",
		Method:      http.MethodPost,
		Path:        "/ledger/redeem",
		Summary:     "Redeem earned coins",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusPaymentRequired,
		},
	}, func(ctx context.Context, input *struct {
		Body AmountRequest `json:"body"`
	}) (*struct {
		Body AccountResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		acct, err := e.Ledger.Redeem(ctx, userID, input.Body.Amount)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AccountResponse `json:"body"`
		}{Body: accountResponse(acct)}, nil
	})
}

func registerHistory(api huma.API, e lifecycle.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "history-tail",
		Method:      http.MethodGet,
		Path:        "/history",
		Summary:     "Tail the lifecycle history log",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		AtelierID string `query:"atelier_id"`
		Type      string `query:"type"`
		ActorID   string `query:"actor_id"`
		Limit     int    `query:"limit" default:"50"`
		Cursor    int64  `query:"cursor"`
	}) (*struct {
		Body []HistoryResponse `json:"body"`
	}, error) {
		if _, authErr := userIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		entries, err := e.History(ctx, repo.HistoryFilters{
			AtelierID: input.AtelierID,
			Type:      input.Type,
			ActorID:   input.ActorID,
			Limit:     normalizeLimit(input.Limit),
			Cursor:    input.Cursor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []HistoryResponse `json:"body"`
		}{Body: mapHistory(entries)}, nil
	})
}

func registerKeys(api huma.API, e lifecycle.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-key",
		Method:        http.MethodPost,
		Path:          "/keys",
		Summary:       "Register an API key for the caller",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateKeyRequest `json:"body"`
	}) (*struct {
		Body KeyResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if strings.TrimSpace(input.Body.Key) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "key is required", nil)
		}
		k := domain.APIKey{
			ID:        uuid.New().String(),
			UserID:    userID,
			Name:      input.Body.Name,
			KeyHash:   repo.HashAPIKey(input.Body.Key),
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := e.Repo.InsertAPIKey(ctx, nil, k); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body KeyResponse `json:"body"`
		}{Body: keyResponse(k)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-keys",
		Method:      http.MethodGet,
		Path:        "/keys",
		Summary:     "List own API keys",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []KeyResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		keys, err := e.Repo.ListAPIKeys(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]KeyResponse, 0, len(keys))
		for _, k := range keys {
			out = append(out, keyResponse(k))
		}
		return &struct {
			Body []KeyResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-key",
		Method:      http.MethodDelete,
		Path:        "/keys/{id}",
		Summary:     "Delete own API key",
		Errors:      []int{http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		keys, err := e.Repo.ListAPIKeys(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		for _, k := range keys {
			if k.ID == input.ID {
				if err := e.Repo.DeleteAPIKey(ctx, input.ID); err != nil {
					return nil, handleError(err)
				}
				return &struct{}{}, nil
			}
		}
		return nil, newAPIError(http.StatusNotFound, "not_found", "api key not found", nil)
	})
}

func parseStatus(in string) (status.Status, error) {
	var code int
	if _, err := fmt.Sscanf(in, "%d", &code); err == nil {
		if !status.Known(code) {
			return 0, fmt.Errorf("invalid status code %d", code)
		}
		return status.Status(code), nil
	}
	for _, code := range []status.Status{
		status.Created, status.InAuction, status.Assigned, status.InProgress,
		status.Complete, status.Cancelled, status.Deleted,
		status.ErrorOnCreate, status.ErrorOnMux, status.ErrorOnAccept, status.ErrorUnknown,
	} {
		if code.Label() == strings.ToLower(strings.TrimSpace(in)) {
			return code, nil
		}
	}
	return 0, fmt.Errorf("invalid status %q", in)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}

func composeCursor(createdAt, id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(createdAt + "|" + id))
}

func parseCompositeCursor(cursor string) (string, string, error) {
	if cursor == "" {
		return "", "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", "", err
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("malformed cursor")
	}
	return parts[0], parts[1], nil
}
