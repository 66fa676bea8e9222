package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"alice", true},
		{"6f1c2a8e-0d4b-4c1e-9a57-3f2d8b9e1c40", true},
		{"", false},
		{"bob:x", false},
		{":", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			require.Equal(t, tt.valid, ValidID(tt.id))
		})
	}
}
