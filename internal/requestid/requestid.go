// Package requestid carries the per-request correlation id through contexts.
package requestid

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Header is the HTTP header that carries the id.
const Header = "X-Request-ID"

const maxLength = 128

type requestIDKey struct{}

// With stores a request id in the context.
func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// FromContext retrieves the request id from the context.
// Returns empty string if no id is present.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// New creates a random request id.
func New() string {
	return uuid.NewString()
}

// Sanitize returns a client-supplied id when it is usable, or a new one.
func Sanitize(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxLength || strings.ContainsFunc(id, isControl) {
		return New()
	}
	return id
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}
