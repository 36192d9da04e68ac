package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	SessionCookieName = "jwt"
	loggedOutValue    = "loggedout"
	loggedOutLifetime = 10 * time.Second
)

// SessionCookies writes the bearer token cookie.
type SessionCookies struct {
	Lifetime time.Duration
	Secure   bool
	now      func() time.Time
}

func NewSessionCookies(lifetime time.Duration, secure bool) *SessionCookies {
	return &SessionCookies{Lifetime: lifetime, Secure: secure, now: time.Now}
}

func (s *SessionCookies) Set(c *gin.Context, token string) {
	s.write(c, token, s.now().Add(s.Lifetime))
}

// Clear overwrites the cookie with a sentinel that expires almost at once.
func (s *SessionCookies) Clear(c *gin.Context) {
	s.write(c, loggedOutValue, s.now().Add(loggedOutLifetime))
}

func (s *SessionCookies) write(c *gin.Context, value string, expires time.Time) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
