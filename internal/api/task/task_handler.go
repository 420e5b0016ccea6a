package task

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/lmoreira/go-task-tracker/app/observability/metrics"
	"github.com/lmoreira/go-task-tracker/internal/api"
	"github.com/lmoreira/go-task-tracker/internal/api/auth"
	"github.com/lmoreira/go-task-tracker/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	ListTasksHandler(w http.ResponseWriter, r *http.Request)
	CreateTaskHandler(w http.ResponseWriter, r *http.Request)
	UpdateTaskHandler(w http.ResponseWriter, r *http.Request)
	DeleteTaskHandler(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	logger  *slog.Logger
	service Service
}

func NewHandler(service Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		logger:  logger,
		service: service,
	}
}

// ownerFromContext pulls the authenticated user id injected by the
// Authenticate middleware. A missing or malformed id means the middleware
// did not run; treat it as an authentication failure.
func (h *HandlerImpl) ownerFromContext(w http.ResponseWriter, r *http.Request, l *slog.Logger) (uuid.UUID, bool) {
	userIDStr, ok := auth.GetUserIDFromContext(r.Context())
	if !ok || userIDStr == "" {
		l.ErrorContext(r.Context(), "User ID not found in context")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		l.ErrorContext(r.Context(), "Invalid user ID format", slog.String("userID_str", userIDStr), slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return uuid.Nil, false
	}
	return userID, true
}

func recordTaskOp(r *http.Request, op string, start time.Time, err error) {
	m := metrics.Get()
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	)
	m.TaskOperationsTotal.Add(r.Context(), 1, attrs)
	m.TaskOpDurationSeconds.Record(r.Context(), time.Since(start).Seconds(), attrs)
}

// ListTasksHandler godoc
// @Summary      List tasks
// @Description  Returns all tasks owned by the authenticated user, newest first
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} types.Task
// @Failure      401 {object} map[string]interface{}
// @Router       /tasks [get]
func (h *HandlerImpl) ListTasksHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TaskHandler").Start(r.Context(), "ListTasks")
	defer span.End()
	r = r.WithContext(ctx)
	l := h.logger.With(slog.String("handler", "ListTasksHandler"))
	start := time.Now()

	userID, ok := h.ownerFromContext(w, r, l)
	if !ok {
		span.SetStatus(codes.Error, "Unauthorized")
		return
	}
	span.SetAttributes(attribute.String("user.id", userID.String()))

	tasks, err := h.service.ListTasks(ctx, userID)
	recordTaskOp(r, "list", start, err)
	if err != nil {
		l.ErrorContext(ctx, "Service failed to list tasks", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list tasks")
		api.DomainErrorResponse(w, r, err)
		return
	}

	span.SetAttributes(attribute.Int("task.count", len(tasks)))
	api.WriteJSONResponse(w, r, http.StatusOK, tasks)
}

// CreateTaskHandler godoc
// @Summary      Create a task
// @Description  Creates a task owned by the authenticated user
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body types.CreateTaskRequest true "Task payload"
// @Success      201 {object} types.Task
// @Failure      400 {object} map[string]interface{}
// @Failure      401 {object} map[string]interface{}
// @Router       /tasks [post]
func (h *HandlerImpl) CreateTaskHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TaskHandler").Start(r.Context(), "CreateTask")
	defer span.End()
	r = r.WithContext(ctx)
	l := h.logger.With(slog.String("handler", "CreateTaskHandler"))
	start := time.Now()

	userID, ok := h.ownerFromContext(w, r, l)
	if !ok {
		span.SetStatus(codes.Error, "Unauthorized")
		return
	}
	span.SetAttributes(attribute.String("user.id", userID.String()))

	// Lenient decode: clients may send an owner field, which is ignored
	// because the owner always comes from the authenticated context.
	var req types.CreateTaskRequest
	if err := api.DecodeJSONBodyAllowUnknown(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode create task request", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.service.CreateTask(ctx, userID, req)
	recordTaskOp(r, "create", start, err)
	if err != nil {
		l.WarnContext(ctx, "Service failed to create task", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create task")
		api.DomainErrorResponse(w, r, err)
		return
	}

	l.InfoContext(ctx, "Task created successfully", slog.String("task_id", task.ID.String()))
	span.SetAttributes(attribute.String("task.id", task.ID.String()))
	api.WriteJSONResponse(w, r, http.StatusCreated, task)
}

// UpdateTaskHandler godoc
// @Summary      Update a task
// @Description  Applies the supplied fields to a task owned by the authenticated user
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Param        request body types.UpdateTaskRequest true "Fields to update"
// @Success      200 {object} types.Task
// @Failure      400 {object} map[string]interface{}
// @Failure      401 {object} map[string]interface{}
// @Failure      404 {object} map[string]interface{}
// @Router       /tasks/{id} [put]
func (h *HandlerImpl) UpdateTaskHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TaskHandler").Start(r.Context(), "UpdateTask")
	defer span.End()
	r = r.WithContext(ctx)
	l := h.logger.With(slog.String("handler", "UpdateTaskHandler"))
	start := time.Now()

	userID, ok := h.ownerFromContext(w, r, l)
	if !ok {
		span.SetStatus(codes.Error, "Unauthorized")
		return
	}

	taskIDStr := chi.URLParam(r, "id")
	taskID, err := uuid.Parse(taskIDStr)
	if err != nil {
		// An unparseable id can never match a row; same non-leaking 404.
		l.WarnContext(ctx, "Invalid task ID format", slog.String("taskID_str", taskIDStr))
		span.SetStatus(codes.Error, "Invalid task ID")
		api.ErrorResponse(w, r, http.StatusNotFound, "Task not found")
		return
	}
	span.SetAttributes(attribute.String("user.id", userID.String()), attribute.String("task.id", taskID.String()))

	var req types.UpdateTaskRequest
	if err := api.DecodeJSONBodyAllowUnknown(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode update task request", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.service.UpdateTask(ctx, userID, taskID, req)
	recordTaskOp(r, "update", start, err)
	if err != nil {
		l.WarnContext(ctx, "Service failed to update task", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update task")
		api.DomainErrorResponse(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, task)
}

// DeleteTaskHandler godoc
// @Summary      Delete a task
// @Description  Deletes a task owned by the authenticated user
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Success      200 {object} map[string]interface{}
// @Failure      401 {object} map[string]interface{}
// @Failure      404 {object} map[string]interface{}
// @Router       /tasks/{id} [delete]
func (h *HandlerImpl) DeleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TaskHandler").Start(r.Context(), "DeleteTask")
	defer span.End()
	r = r.WithContext(ctx)
	l := h.logger.With(slog.String("handler", "DeleteTaskHandler"))
	start := time.Now()

	userID, ok := h.ownerFromContext(w, r, l)
	if !ok {
		span.SetStatus(codes.Error, "Unauthorized")
		return
	}

	taskIDStr := chi.URLParam(r, "id")
	taskID, err := uuid.Parse(taskIDStr)
	if err != nil {
		l.WarnContext(ctx, "Invalid task ID format", slog.String("taskID_str", taskIDStr))
		span.SetStatus(codes.Error, "Invalid task ID")
		api.ErrorResponse(w, r, http.StatusNotFound, "Task not found")
		return
	}
	span.SetAttributes(attribute.String("user.id", userID.String()), attribute.String("task.id", taskID.String()))

	err = h.service.DeleteTask(ctx, userID, taskID)
	recordTaskOp(r, "delete", start, err)
	if err != nil {
		l.WarnContext(ctx, "Service failed to delete task", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete task")
		api.DomainErrorResponse(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Task deleted successfully",
	})
}
