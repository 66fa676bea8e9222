package auth

import (
	"courier/errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestVerifier_Round_Trip(t *testing.T) {
	req := require.New(t)
	verifier := NewVerifier("secret")

	token, err := verifier.GenerateToken("alice", time.Minute)
	req.NoError(err)

	userID, err := verifier.Verify(token)
	req.NoError(err)
	req.Equal("alice", userID)
}

func TestVerifier_Rejects(t *testing.T) {
	verifier := NewVerifier("secret")
	expired, err := verifier.GenerateToken("alice", -time.Minute)
	require.NoError(t, err)
	foreign, err := NewVerifier("other").GenerateToken("alice", time.Minute)
	require.NoError(t, err)
	separator, err := verifier.GenerateToken("bob:x", time.Minute)
	require.NoError(t, err)
	anonymous, err := verifier.GenerateToken("", time.Minute)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "alice"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"expired", expired},
		{"wrong secret", foreign},
		{"unsigned", none},
		{"user id with key separator", separator},
		{"no user id", anonymous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			require.ErrorIs(t, err, errors.ErrUnauthenticated)
		})
	}
}
