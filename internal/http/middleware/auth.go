package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"natours/internal/models"
	"natours/internal/utils"
)

const currentUserKey = "current_user"

// Authenticator resolves bearer tokens to users.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
	Identify(ctx context.Context, token string) (*models.User, bool)
}

// Protect rejects requests without a valid token of an active user whose
// password has not changed since the token was issued.
func Protect(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			utils.RespondError(c, utils.Unauthenticated(utils.CodeUnauthenticated,
				"You are not logged in! Please log in to get access."))
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			utils.RespondError(c, err)
			return
		}

		setCurrentUser(c, user)
		c.Next()
	}
}

// IsLoggedIn attaches the user when the session cookie is valid and never fails.
func IsLoggedIn(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(utils.SessionCookieName)
		if err == nil {
			if user, ok := auth.Identify(c.Request.Context(), cookie); ok {
				setCurrentUser(c, user)
			}
		}
		c.Next()
	}
}

// RestrictTo lets through only users holding one of roles. It must run after Protect.
func RestrictTo(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.Role.In(roles...) {
			utils.RespondError(c, utils.Forbidden())
			return
		}
		c.Next()
	}
}

// ExtractToken reads the bearer token from the Authorization header, falling
// back to the session cookie.
func ExtractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	if cookie, err := c.Cookie(utils.SessionCookieName); err == nil {
		return cookie
	}
	return ""
}

func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

func setCurrentUser(c *gin.Context, user *models.User) {
	c.Set(currentUserKey, user)
}
