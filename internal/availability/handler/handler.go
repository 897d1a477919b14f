package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tutorly/internal/availability/models"
	id "tutorly/pkg/domain"
	dErrors "tutorly/pkg/domain-errors"
	"tutorly/pkg/platform/httputil"
	"tutorly/pkg/requestcontext"
)

type Service interface {
	GetSchedule(ctx context.Context, teacherID id.TeacherID) (*models.Schedule, error)
	ReplaceSchedule(ctx context.Context, schedule *models.Schedule) error
}

// Handler serves teacher schedules.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public read route.
func (h *Handler) Register(r chi.Router) {
	r.Get("/teachers/{teacherID}/availability", h.handleGet)
}

// RegisterAdmin mounts schedule maintenance. Callers wrap r with the admin token check.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Put("/admin/teachers/{teacherID}/availability", h.handleReplace)
}

type replaceRequest struct {
	Name       string          `json:"name"`
	HourlyRate id.Money        `json:"hourly_rate"`
	Windows    []models.Window `json:"windows"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	teacherID, err := id.ParseTeacherID(chi.URLParam(r, "teacherID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	schedule, err := h.service.GetSchedule(ctx, teacherID)
	if err != nil {
		h.logFailure(ctx, "failed to load schedule", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, schedule)
}

func (h *Handler) handleReplace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	teacherID, err := id.ParseTeacherID(chi.URLParam(r, "teacherID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req replaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid schedule request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	schedule := &models.Schedule{
		TeacherID:  teacherID,
		Name:       req.Name,
		HourlyRate: req.HourlyRate,
		Windows:    req.Windows,
	}
	if err := h.service.ReplaceSchedule(ctx, schedule); err != nil {
		h.logFailure(ctx, "failed to replace schedule", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, schedule)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
}
