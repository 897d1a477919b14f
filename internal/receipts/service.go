package receipts

import (
	"bytes"
	"context"
	"log/slog"
	"path"
	"sync"

	dErrors "tutorly/pkg/domain-errors"
)

// Storage persists an accepted file and returns its public URL.
type Storage interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Stored describes an accepted receipt.
type Stored struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Fingerprint string `json:"fingerprint"`
}

// Service validates receipts and stores each distinct file once. Uploading
// identical bytes again returns the URL of the first copy.
type Service struct {
	storage  Storage
	logger   *slog.Logger
	maxBytes int64

	mu    sync.Mutex
	known map[string]Stored
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMaxBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

func NewService(storage Storage, opts ...Option) *Service {
	s := &Service{
		storage:  storage,
		logger:   slog.Default(),
		maxBytes: MaxBytes,
		known:    make(map[string]Stored),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxBytes is the configured upload limit.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

func (s *Service) Upload(ctx context.Context, name string, data []byte) (*Stored, error) {
	if err := CheckSize(name, int64(len(data)), s.maxBytes); err != nil {
		return nil, err
	}
	contentType, err := Sniff(name, data)
	if err != nil {
		return nil, err
	}
	fp := Fingerprint(data)

	s.mu.Lock()
	if prev, ok := s.known[fp]; ok {
		s.mu.Unlock()
		return &prev, nil
	}
	s.mu.Unlock()

	key := fp[:32] + extension(contentType, name)
	url, err := s.storage.Put(ctx, key, contentType, bytes.Clone(data))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "receipt storage unavailable")
	}
	stored := Stored{URL: url, ContentType: contentType, Size: int64(len(data)), Fingerprint: fp}

	s.mu.Lock()
	s.known[fp] = stored
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "receipt stored",
		"content_type", contentType,
		"size", stored.Size,
	)
	return &stored, nil
}

func extension(contentType, name string) string {
	switch contentType {
	case "application/pdf":
		return ".pdf"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return path.Ext(name)
}
