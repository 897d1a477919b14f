// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values and services read them, so services never import
// net/http to learn who is calling or what time the request started.
//
//	studentID := requestcontext.StudentID(ctx)
//	now := requestcontext.Now(ctx)
package requestcontext

import (
	"context"
	"time"

	id "tutorly/pkg/domain"
)

type (
	studentIDKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

var (
	ContextKeyStudentID   = studentIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// StudentID retrieves the authenticated student from the context.
// Returns the zero value if not set.
func StudentID(ctx context.Context) id.StudentID {
	if studentID, ok := ctx.Value(ContextKeyStudentID).(id.StudentID); ok {
		return studentID
	}
	return id.StudentID{}
}

// WithStudentID injects a student ID into the context.
func WithStudentID(ctx context.Context, studentID id.StudentID) context.Context {
	return context.WithValue(ctx, ContextKeyStudentID, studentID)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() outside HTTP requests (CLI, workers, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
