package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func set(ids ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name       string
		recipients []string
		delivered  map[string]struct{}
		read       map[string]struct{}
		want       Status
	}{
		{"nobody received", []string{"b", "c"}, set(), set(), StatusSent},
		{"one of two delivered", []string{"b", "c"}, set("b"), set(), StatusSent},
		{"all delivered", []string{"b", "c"}, set("b", "c"), set(), StatusDelivered},
		{"one read one delivered", []string{"b", "c"}, set("b", "c"), set("b"), StatusDelivered},
		{"one read one missing", []string{"b", "c"}, set("b"), set("b"), StatusSent},
		{"all read", []string{"b", "c"}, set("b", "c"), set("b", "c"), StatusRead},
		{"read without delivery row counts as delivered", []string{"b"}, set(), set("b"), StatusRead},
		{"no recipients", nil, set(), set(), StatusRead},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Aggregate(tt.recipients, tt.delivered, tt.read))
		})
	}
}

func TestStatus_After(t *testing.T) {
	req := require.New(t)
	req.True(StatusRead.After(StatusDelivered))
	req.True(StatusDelivered.After(StatusSent))
	req.False(StatusSent.After(StatusSent))
	req.False(StatusDelivered.After(StatusRead))
}

func TestMessage_Preview(t *testing.T) {
	req := require.New(t)
	req.Equal("hi", Message{Content: "hi", Type: TextMessage}.Preview())
	req.Equal("[image]", Message{Content: "https://cdn/x.png", Type: ImageMessage}.Preview())
}
