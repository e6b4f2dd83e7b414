package middlewares

import (
	"context"
	"net/http"

	"github.com/geocoder89/authservice/internal/auth"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type IdentityVerifier interface {
	VerifyToken(ctx context.Context, raw string) (auth.Identity, error)
	VerifyIdentity(ctx context.Context, header string) (auth.Identity, error)
}

type AuthMiddleware struct {
	verifier   IdentityVerifier
	cookieName string
}

func NewAuthMiddleware(verifier IdentityVerifier, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, cookieName: cookieName}
}

// RequireAuth accepts the session cookie or an "Authorization: Bearer"
// header. When both are sent the cookie wins.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			id  auth.Identity
			err error
		)

		if raw, cookieErr := c.Cookie(m.cookieName); cookieErr == nil && raw != "" {
			id, err = m.verifier.VerifyToken(c.Request.Context(), raw)
		} else {
			id, err = m.verifier.VerifyIdentity(c.Request.Context(), c.GetHeader("Authorization"))
		}

		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
			return
		}

		// Stash useful bits of identity on the context
		c.Set(CtxUserID, id.UserID)
		c.Set(CtxEmail, id.Email)

		c.Next()
	}
}

// Optional helpers so handlers don’t need to know the magic keys.

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func EmailFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxEmail)
	if !ok {
		return "", false
	}
	email, ok := v.(string)
	return email, ok
}
