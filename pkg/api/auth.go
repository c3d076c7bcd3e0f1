package api

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin     = "admin"
	RoleStaff     = "staff"
	RoleVolunteer = "volunteer"

	contextClaimsKey = "claims"
)

var (
	errMissingToken = echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
	errInvalidToken = echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
	errForbidden    = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

// Claims represents the authorization claims transmitted via a JWT.
// Tokens are issued elsewhere; this service only verifies them.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
	Role string `json:"role"`
}

// GenerateToken signs claims for subject with HS256
func GenerateToken(secret []byte, subject, name, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name: name,
		Role: role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// parseToken validates signature, algorithm and expiry
func parseToken(secret []byte, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func authMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			bearer := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
			if bearer == "" {
				return errMissingToken
			}
			if len(bearer) < 7 || !strings.EqualFold(bearer[:7], "Bearer ") {
				return errMissingToken
			}

			claims, err := parseToken(secret, strings.TrimSpace(bearer[7:]))
			if err != nil {
				return errInvalidToken.WithInternal(err)
			}

			claims.Role = strings.ToLower(claims.Role)
			c.Set(contextClaimsKey, claims)
			return next(c)
		}
	}
}

// requireRole allows the request through when the caller has any of roles
func requireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := contextClaims(c)
			if !ok {
				return errMissingToken
			}
			if !slices.Contains(roles, claims.Role) {
				return errForbidden
			}
			return next(c)
		}
	}
}

func contextClaims(c echo.Context) (*Claims, bool) {
	claims, ok := c.Get(contextClaimsKey).(*Claims)
	return claims, ok
}

// actorID is the authenticated caller, recorded on audit entries and credits
func actorID(c echo.Context) string {
	if claims, ok := contextClaims(c); ok {
		return claims.Subject
	}
	return ""
}
