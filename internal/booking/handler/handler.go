package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	avmodels "tutorly/internal/availability/models"
	"tutorly/internal/booking/models"
	id "tutorly/pkg/domain"
	dErrors "tutorly/pkg/domain-errors"
	"tutorly/pkg/platform/httputil"
	"tutorly/pkg/requestcontext"
)

const dateLayout = "2006-01-02"

type Service interface {
	Create(ctx context.Context, studentID id.StudentID, teacherID id.TeacherID, start, end time.Time) (*models.Booking, error)
	Probe(ctx context.Context, teacherID id.TeacherID, start, end time.Time) (bool, error)
	Get(ctx context.Context, studentID id.StudentID, bookingID id.BookingID) (*models.Booking, error)
	Cancel(ctx context.Context, bookingID id.BookingID) (*models.Booking, error)
}

// Handler serves booking creation, probing and lookup.
type Handler struct {
	service  Service
	logger   *slog.Logger
	location *time.Location
}

// New builds a Handler. loc is the zone probe dates and slot labels are read in.
func New(service Service, logger *slog.Logger, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{service: service, logger: logger, location: loc}
}

// Register mounts student routes. Callers wrap r with RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/bookings", h.handleCreate)
	r.Get("/bookings/{bookingID}", h.handleGet)
	r.Post("/slots/probe", h.handleProbe)
}

// RegisterAdmin mounts back-office routes. Callers wrap r with the admin token check.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/bookings/{bookingID}/cancel", h.handleCancel)
}

type createRequest struct {
	TeacherID string    `json:"teacher_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type probeRequest struct {
	TeacherID string `json:"teacher_id"`
	Date      string `json:"date"`
	TimeSlot  string `json:"time_slot"`
}

type probeResponse struct {
	Available bool `json:"available"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	teacherID, err := id.ParseTeacherID(req.TeacherID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	booking, err := h.service.Create(ctx, requestcontext.StudentID(ctx), teacherID, req.StartTime, req.EndTime)
	if err != nil {
		h.logFailure(ctx, "failed to create booking", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, booking)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bookingID, err := id.ParseBookingID(chi.URLParam(r, "bookingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	booking, err := h.service.Get(ctx, requestcontext.StudentID(ctx), bookingID)
	if err != nil {
		h.logFailure(ctx, "failed to load booking", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, booking)
}

func (h *Handler) handleProbe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req probeRequest
	if !h.decode(w, r, &req) {
		return
	}
	teacherID, err := id.ParseTeacherID(req.TeacherID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	date, err := time.ParseInLocation(dateLayout, req.Date, h.location)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "date must be YYYY-MM-DD"))
		return
	}
	slot, err := avmodels.ParseTimeSlot(req.TimeSlot)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	concrete := slot.On(date)
	available, err := h.service.Probe(ctx, teacherID, concrete.Start, concrete.End)
	if err != nil {
		h.logFailure(ctx, "slot probe failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, probeResponse{Available: available})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bookingID, err := id.ParseBookingID(chi.URLParam(r, "bookingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	booking, err := h.service.Cancel(ctx, bookingID)
	if err != nil {
		h.logFailure(ctx, "failed to cancel booking", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, booking)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		ctx := r.Context()
		h.logger.WarnContext(ctx, "invalid request body",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return false
	}
	return true
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
