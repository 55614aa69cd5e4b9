package auth0

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/auth"
)

const (
	AuthorizationHeader = "Authorization"
	bearer              = "Bearer "

	jwksCacheTTL = 5 * time.Minute
)

type Config struct {
	Issuer   string `yaml:"issuer" envconfig:"AUTH0_DOMAIN"`
	Audience string `yaml:"audience" envconfig:"AUTH0_AUDIENCE"`
}

func (c Config) Enabled() bool {
	return c.Issuer != ""
}

// CustomClaims are the library claims the identity provider adds to access tokens.
type CustomClaims struct {
	UserID int    `json:"library_user_id"`
	Role   string `json:"library_role"`
	Scope  string `json:"scope"`
}

func (c *CustomClaims) Validate(context.Context) error {
	if c.UserID <= 0 {
		return auth.ErrNoIdentity
	}
	if c.Role == "" {
		return errors.New("library_role claim is empty")
	}
	return nil
}

// HasScope checks whether our claims have a specific scope.
func (c *CustomClaims) HasScope(expectedScope string) bool {
	for _, s := range strings.Fields(c.Scope) {
		if s == expectedScope {
			return true
		}
	}
	return false
}

// MiddleWareWithConfig validates RS256 tokens against the issuer's JWKS
// and puts the library identity from the custom claims into the request context.
func MiddleWareWithConfig(cfg Config) (echo.MiddlewareFunc, error) {
	issuerURL, err := url.Parse("https://" + cfg.Issuer + "/")
	if err != nil {
		return nil, errors.Wrap(err, "parse issuer url")
	}
	provider := jwks.NewCachingProvider(issuerURL, jwksCacheTTL)
	return newMiddleware(provider.KeyFunc, issuerURL.String(), cfg.Audience)
}

func newMiddleware(keyFunc func(context.Context) (interface{}, error), issuer, audience string) (echo.MiddlewareFunc, error) {
	jwtValidator, err := validator.New(
		keyFunc,
		validator.RS256,
		issuer,
		[]string{audience},
		validator.WithCustomClaims(func() validator.CustomClaims { return &CustomClaims{} }),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, errors.Wrap(err, "jwt validator")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authorization := c.Request().Header.Get(AuthorizationHeader)
			if authorization == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "No Authorization Header")
			}
			if !strings.HasPrefix(authorization, bearer) {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization Header")
			}
			token := strings.TrimPrefix(authorization, bearer)

			req := c.Request()
			validated, err := jwtValidator.ValidateToken(req.Context(), token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Token")
			}
			claims, ok := validated.(*validator.ValidatedClaims).CustomClaims.(*CustomClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, auth.ErrNoIdentity.Error())
			}

			ctx := auth.SetAuthContext(req.Context(), claims.UserID, claims.Role)
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}, nil
}
