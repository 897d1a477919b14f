// Package receipts holds the rules every payment receipt must satisfy and the
// service that stores accepted files. The same rules run on the student's side
// when a file is staged and on the server when it is uploaded.
package receipts

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/blake2b"

	dErrors "tutorly/pkg/domain-errors"
)

// MaxBytes is the largest receipt accepted.
const MaxBytes = 10 << 20

// Sniff returns the detected content type of data, or an error naming the
// file when it is neither an image nor a PDF.
func Sniff(name string, data []byte) (string, error) {
	contentType := http.DetectContentType(data)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	if !IsAllowedType(contentType) {
		return "", dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("%s: only images or PDF files are accepted", displayName(name)))
	}
	return contentType, nil
}

func IsAllowedType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") || contentType == "application/pdf"
}

// IsImage reports whether contentType can be previewed inline.
func IsImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

// CheckSize rejects empty files and files over limit.
func CheckSize(name string, size int64, limit int64) error {
	if size == 0 {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s: file is empty", displayName(name)))
	}
	if size > limit {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("%s: file exceeds the %dMB limit", displayName(name), limit>>20))
	}
	return nil
}

// Fingerprint is a stable content hash used to spot the same file staged twice.
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func displayName(name string) string {
	if name == "" {
		return "file"
	}
	return name
}
