package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tutorly/internal/receipts"
	"tutorly/internal/receipts/storage"
	dErrors "tutorly/pkg/domain-errors"
	"tutorly/pkg/platform/httputil"
	"tutorly/pkg/requestcontext"
)

const multipartOverhead = 1 << 20

type Service interface {
	Upload(ctx context.Context, name string, data []byte) (*receipts.Stored, error)
	MaxBytes() int64
}

// FileServer is implemented by storages that can serve their own files.
type FileServer interface {
	Get(key string) (storage.File, bool)
}

type Handler struct {
	service Service
	files   FileServer
	logger  *slog.Logger
}

// New builds the handler. files may be nil when receipts live on a CDN.
func New(service Service, files FileServer, logger *slog.Logger) *Handler {
	return &Handler{service: service, files: files, logger: logger}
}

// Register mounts the upload route. Callers wrap r with RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/files", h.handleUpload)
}

// RegisterPublic mounts file serving for in-process storage.
func (h *Handler) RegisterPublic(r chi.Router) {
	if h.files != nil {
		r.Get("/files/{key}", h.handleServe)
	}
}

type uploadResponse struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := h.service.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "file exceeds the upload limit"))
			return
		}
		h.logger.WarnContext(ctx, "missing upload file",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "could not read upload"))
		return
	}
	stored, err := h.service.Upload(ctx, header.Filename, data)
	if err != nil {
		if dErrors.CodeOf(err) != dErrors.CodeValidation {
			h.logger.ErrorContext(ctx, "receipt upload failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, uploadResponse{
		URL:         stored.URL,
		ContentType: stored.ContentType,
		Size:        stored.Size,
	})
}

func (h *Handler) handleServe(w http.ResponseWriter, r *http.Request) {
	f, ok := h.files.Get(chi.URLParam(r, "key"))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "file not found"))
		return
	}
	w.Header().Set("Content-Type", f.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Data)
}
