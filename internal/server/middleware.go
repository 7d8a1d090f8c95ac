package server

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/ljoukov/dust/internal/domain"
	"github.com/ljoukov/dust/internal/platform/correlation"
)

// Session keys
const (
	sessionName          = "dust-session"
	sessionKeyUsername   = "username"
	sessionKeyOAuthState = "oauth_state"
)

const contextKeySession = "session"

const rateLimiterExpiry = 5 * time.Minute

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := correlation.WithID(c.Request().Context(), correlation.NewID())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// requireSession resolves the session cookie and stores the session in the
// request context. Requests with no resolvable session are redirected to
// the root path before any core API call is made.
func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		session, err := s.sessionStore.Get(c.Request(), sessionName)
		if err != nil {
			return c.Redirect(http.StatusFound, "/")
		}

		username, ok := session.Values[sessionKeyUsername].(string)
		if !ok || username == "" {
			return c.Redirect(http.StatusFound, "/")
		}

		c.Set(contextKeySession, domain.Session{Username: username})
		return next(c)
	}
}

// requireOwner enforces that the route's :user segment matches the session
// username. A user may only view and edit their own app's datasets.
func (s *Server) requireOwner(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, ok := c.Get(contextKeySession).(domain.Session)
		if !ok || c.Param("user") != sess.Username {
			return c.Redirect(http.StatusFound, "/")
		}
		return next(c)
	}
}

// currentSession returns the session placed in the context by requireSession.
func currentSession(c echo.Context) domain.Session {
	sess, _ := c.Get(contextKeySession).(domain.Session)
	return sess
}

func newRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "rate limit exceeded",
			})
		},
	})
}

// renderTemplate renders a template to a buffer first to prevent partial HTML
// from being sent if template execution fails.
func renderTemplate(c echo.Context, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		slog.ErrorContext(c.Request().Context(), "Template execution failed",
			"path", c.Request().URL.Path, "error", err)
		return c.String(http.StatusInternalServerError, "Failed to render page")
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}
