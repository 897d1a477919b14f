package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tutorly/internal/payment/models"
	id "tutorly/pkg/domain"
	dErrors "tutorly/pkg/domain-errors"
	"tutorly/pkg/platform/httputil"
	"tutorly/pkg/requestcontext"
)

type Service interface {
	Submit(ctx context.Context, studentID id.StudentID, sub models.Submission) (*models.Payment, error)
	Review(ctx context.Context, paymentID id.PaymentID, approve bool, reason string) (*models.Payment, error)
	Get(ctx context.Context, studentID id.StudentID, paymentID id.PaymentID) (*models.Payment, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts student routes. Callers wrap r with RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/payments", h.handleSubmit)
	r.Get("/payments/{paymentID}", h.handleGet)
}

// RegisterAdmin mounts payment review. Callers wrap r with the admin token check.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/payments/{paymentID}/review", h.handleReview)
}

type reviewRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var sub models.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		h.badBody(ctx, w, err)
		return
	}
	payment, err := h.service.Submit(ctx, requestcontext.StudentID(ctx), sub)
	if err != nil {
		h.logFailure(ctx, "failed to submit payment", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, payment)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paymentID, err := id.ParsePaymentID(chi.URLParam(r, "paymentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	payment, err := h.service.Get(ctx, requestcontext.StudentID(ctx), paymentID)
	if err != nil {
		h.logFailure(ctx, "failed to load payment", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, payment)
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paymentID, err := id.ParsePaymentID(chi.URLParam(r, "paymentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badBody(ctx, w, err)
		return
	}
	payment, err := h.service.Review(ctx, paymentID, req.Approve, req.Reason)
	if err != nil {
		h.logFailure(ctx, "failed to review payment", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, payment)
}

func (h *Handler) badBody(ctx context.Context, w http.ResponseWriter, err error) {
	h.logger.WarnContext(ctx, "invalid request body",
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
	// Typed fields (ids, money, dates) fail during decoding; surface their message.
	if dErrors.CodeOf(err) == dErrors.CodeInvalidInput {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
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
