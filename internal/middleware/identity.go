package middleware

import "github.com/labstack/echo/v4"

// currentUserID returns the authenticated user ID stored by JWTAuth, or
// "anon" for public callers.
func currentUserID(c echo.Context) string {
	if s, ok := c.Get("user_id").(string); ok && s != "" {
		return s
	}
	return "anon"
}
