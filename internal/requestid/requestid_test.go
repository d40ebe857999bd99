package requestid

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestFromContext(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		wantBack string
	}{
		{"stores and retrieves id", "req-123", "req-123"},
		{"empty context returns empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.id != "" {
				ctx = With(ctx, tt.id)
			}
			got := FromContext(ctx)
			if got != tt.wantBack {
				t.Errorf("FromContext() = %q, want %q", got, tt.wantBack)
			}
		})
	}
}

func TestNew(t *testing.T) {
	id := New()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("New() = %q is not a uuid: %v", id, err)
	}
	if New() == id {
		t.Error("New() returned the same id twice")
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantKeep bool
	}{
		{"keeps client id", "abc-123", true},
		{"replaces empty", "", false},
		{"replaces blank", "   ", false},
		{"replaces control characters", "abc\ndef", false},
		{"replaces oversized", strings.Repeat("x", 200), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.in)
			if tt.wantKeep {
				if got != tt.in {
					t.Errorf("Sanitize(%q) = %q, want unchanged", tt.in, got)
				}
				return
			}
			if _, err := uuid.Parse(got); err != nil {
				t.Errorf("Sanitize(%q) = %q, want a generated uuid", tt.in, got)
			}
		})
	}
}
