package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"alpine/internal/platform/metrics"
	"alpine/internal/platform/middleware"
	"alpine/internal/superchat"
	dErrors "alpine/pkg/domain-errors"
	"alpine/pkg/platform/httputil"
	"alpine/pkg/requestcontext"
)

// Executor runs state-changing intents.
type Executor interface {
	Execute(ctx context.Context, intent superchat.Intent) (*superchat.Result, error)
}

// Querier answers read-only queries.
type Querier interface {
	Run(ctx context.Context, query superchat.Query) (any, error)
}

// Handler serves the superchat API.
type Handler struct {
	executor        Executor
	queries         Querier
	callerValidator middleware.CallerValidator
	logger          *slog.Logger
	metrics         *metrics.Metrics
	timeout         time.Duration
}

func New(
	executor Executor,
	queries Querier,
	callerValidator middleware.CallerValidator,
	logger *slog.Logger,
	metrics *metrics.Metrics,
) *Handler {
	return &Handler{
		executor:        executor,
		queries:         queries,
		callerValidator: callerValidator,
		logger:          logger,
		metrics:         metrics,
		timeout:         30 * time.Second,
	}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(h.timeout))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.LatencyMiddleware(h.metrics))

		r.With(middleware.RequireCaller(h.callerValidator, h.logger)).Post("/execute", h.handleExecute)
		r.Post("/query", h.handleQuery)

		r.Get("/users", h.handleListUsers)
		r.Get("/users/by-address/{address}", h.handleUserByAddress)
		r.Get("/users/{username}", h.handleUserByName)
		r.Get("/users/{username}/donations/sent", h.handleSentDonations)
		r.Get("/users/{username}/donations/received", h.handleReceivedDonations)
		r.Get("/usernames/{username}/available", h.handleUsernameAvailable)
		r.Get("/donations/count", h.handleDonationCount)
		r.Get("/donations/{id}", h.handleDonation)
	})
}

func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req ExecuteRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid execute request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	intent, err := req.intent()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.executor.Execute(ctx, intent)
	if err != nil {
		h.writeFailure(ctx, w, "execute", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req QueryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid query request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	query, err := req.query()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.runQuery(w, r, query)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	h.runQuery(w, r, superchat.GetAllUsers{})
}

func (h *Handler) handleUserByAddress(w http.ResponseWriter, r *http.Request) {
	h.runQuery(w, r, superchat.GetUserByAddr{Address: chi.URLParam(r, "address")})
}

func (h *Handler) handleUserByName(w http.ResponseWriter, r *http.Request) {
	h.runQuery(w, r, superchat.GetUserByName{Username: chi.URLParam(r, "username")})
}

func (h *Handler) handleSentDonations(w http.ResponseWriter, r *http.Request) {
	h.runQuery(w, r, superchat.GetSentDonations{Sender: chi.URLParam(r, "username")})
}

func (h *Handler) handleReceivedDonations(w http.ResponseWriter, r *http.Request) {
	h.runQuery(w, r, superchat.GetReceivedDonations{Recipient: chi.URLParam(r, "username")})
}

func (h *Handler) handleUsernameAvailable(w http.ResponseWriter, r *http.Request) {
	h.runQuery(w, r, superchat.IsUsernameAvailable{Username: chi.URLParam(r, "username")})
}

func (h *Handler) handleDonationCount(w http.ResponseWriter, r *http.Request) {
	h.runQuery(w, r, superchat.GetDonationCount{})
}

func (h *Handler) handleDonation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "donation id must be an unsigned integer").
			WithDetail("id", chi.URLParam(r, "id")))
		return
	}
	h.runQuery(w, r, superchat.GetSingleDonation{ID: id})
}

func (h *Handler) runQuery(w http.ResponseWriter, r *http.Request, query superchat.Query) {
	resp, err := h.queries.Run(r.Context(), query)
	if err != nil {
		h.writeFailure(r.Context(), w, "query", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeFailure(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if !dErrors.IsClientError(dErrors.CodeOf(err)) {
		h.logger.ErrorContext(ctx, op+" failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
