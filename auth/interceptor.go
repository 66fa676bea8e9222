package auth

import (
	"courier/contract"
	"courier/errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const UserIDKey = "user_id"

// TokenFromRequest reads the bearer token from the Authorization header,
// falling back to the token query parameter browsers use for WebSockets.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// Middleware rejects the request with 401 unless it carries a valid token.
// The authenticated user ID is stored under UserIDKey.
func Middleware(verifier contract.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := verifier.Verify(TokenFromRequest(c.Request))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  errors.CodeUnauth,
				"error": errors.ErrUnauthenticated.Error(),
			})
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID returns the identity set by Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
