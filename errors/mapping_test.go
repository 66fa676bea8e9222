package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not member", ErrNotMember, http.StatusForbidden},
		{"wrapped not recipient", fmt.Errorf("mark read: %w", ErrNotRecipient), http.StatusForbidden},
		{"message not found", ErrMessageNotFound, http.StatusNotFound},
		{"transient after retries", fmt.Errorf("append: %w", ErrTransientStore), http.StatusServiceUnavailable},
		{"bad payload", ErrInvalidPayload, http.StatusBadRequest},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, MapToHTTPStatus(tt.err))
		})
	}
}
