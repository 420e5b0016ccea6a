package auth

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/lmoreira/go-task-tracker/app/observability/metrics"
	"github.com/lmoreira/go-task-tracker/internal/api"
	"github.com/lmoreira/go-task-tracker/internal/types"
)

var _ Handler = (*AuthHandlerImpl)(nil)

type Handler interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
}

// AuthHandlerImpl handles HTTP requests for authentication operations
type AuthHandlerImpl struct {
	authService AuthService
	logger      *slog.Logger
}

func NewAuthHandlerImpl(authService AuthService, logger *slog.Logger) *AuthHandlerImpl {
	return &AuthHandlerImpl{
		authService: authService,
		logger:      logger,
	}
}

// Register godoc
// @Summary      Register a new user
// @Description  Creates a user identity and returns it with a fresh access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body types.RegisterRequest true "Registration payload"
// @Success      201 {object} types.AuthResponse
// @Failure      400 {object} map[string]interface{}
// @Failure      500 {object} map[string]interface{}
// @Router       /auth/register [post]
func (h *AuthHandlerImpl) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Register"))
	start := time.Now()

	var req types.RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode register request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, token, err := h.authService.Register(ctx, req.Username, req.Email, req.Password)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	if m := metrics.Get(); m != nil {
		m.RegisterRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		m.AuthDurationSeconds.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("operation", "register")))
	}
	if err != nil {
		l.WarnContext(ctx, "Registration failed", slog.Any("error", err), slog.String("email", req.Email))
		api.DomainErrorResponse(w, r, err)
		return
	}

	l.InfoContext(ctx, "User registered successfully", slog.String("user_id", user.ID.String()))
	api.WriteJSONResponse(w, r, http.StatusCreated, types.AuthResponse{User: user, Token: token})
}

// Login godoc
// @Summary      Login a user
// @Description  Authenticates by email and password and returns a fresh access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body types.LoginRequest true "Login payload"
// @Success      200 {object} types.AuthResponse
// @Failure      401 {object} map[string]interface{}
// @Failure      500 {object} map[string]interface{}
// @Router       /auth/login [post]
func (h *AuthHandlerImpl) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Login"))
	start := time.Now()

	var req types.LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode login request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, token, err := h.authService.Login(ctx, req.Email, req.Password)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	if m := metrics.Get(); m != nil {
		m.LoginRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		m.AuthDurationSeconds.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("operation", "login")))
	}
	if err != nil {
		// Unknown email and wrong password look identical here on purpose.
		l.WarnContext(ctx, "Login failed", slog.Any("error", err))
		api.DomainErrorResponse(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.AuthResponse{User: user, Token: token})
}
