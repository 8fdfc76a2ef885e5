package api

import (
	"net/http"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"

	contractx "github.com/campora/assistant/assistant/contract"
)

const principalContextKey = "principal"

// Claims is the JWT payload the auth provider issues. Authentication itself
// happens elsewhere; this adapter only verifies and reads the claims.
type Claims struct {
	jwt.StandardClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// bearerAuth verifies the Authorization bearer token and stores the
// principal on the request context.
func bearerAuth(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token := strings.TrimPrefix(header, "Bearer ")
			if token == "" || token == header {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims := new(Claims)
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !parsed.Valid || claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(principalContextKey, contractx.Principal{
				ID:          claims.Subject,
				Email:       claims.Email,
				DisplayName: claims.Name,
			})
			return next(c)
		}
	}
}

func principalFrom(c echo.Context) (contractx.Principal, bool) {
	p, ok := c.Get(principalContextKey).(contractx.Principal)
	return p, ok
}
