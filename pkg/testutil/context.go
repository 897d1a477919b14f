package testutil

import (
	"net/http"

	id "tutorly/pkg/domain"
	"tutorly/pkg/requestcontext"
)

// WithStudent adds a student ID to the request context, simulating what the
// auth middleware does for authenticated requests.
func WithStudent(req *http.Request, studentID id.StudentID) *http.Request {
	return req.WithContext(requestcontext.WithStudentID(req.Context(), studentID))
}
