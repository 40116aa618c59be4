package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/mpas/sequencer/cmd/sequencer/models"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// UsernameKey is the context key for the acting planner
	UsernameKey ContextKey = "username"

	// ClientIDKey is the context key for the planner's workstation
	ClientIDKey ContextKey = "clientid"
)

// ExtractIdentity stores the planner identity in the request context.
//
// Sources, first non-empty wins:
//   - query: username | user, clientid | client
//   - headers: X-User-ID, X-Client-ID
//
// Missing values are left unset; handlers fall back to SYSTEM/UNKNOWN.
func ExtractIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			username := firstNonEmpty(
				c.QueryParam("username"),
				c.QueryParam("user"),
				c.Request().Header.Get("X-User-ID"),
			)
			if username != "" {
				c.Set(string(UsernameKey), username)
			}

			clientID := firstNonEmpty(
				c.QueryParam("clientid"),
				c.QueryParam("client"),
				c.Request().Header.Get("X-Client-ID"),
			)
			if clientID != "" {
				c.Set(string(ClientIDKey), clientID)
			}

			return next(c)
		}
	}
}

// GetUsername retrieves the username from the request context
// Returns empty string if not set
func GetUsername(c echo.Context) string {
	username, _ := c.Get(string(UsernameKey)).(string)
	return username
}

// GetIdentity returns the request identity without defaults applied
func GetIdentity(c echo.Context) models.Identity {
	clientID, _ := c.Get(string(ClientIDKey)).(string)
	return models.Identity{
		Username: GetUsername(c),
		ClientID: clientID,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
