package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"leaseprotect/internal/auth"
	"leaseprotect/internal/domain/actor"

	"github.com/labstack/echo/v4"
)

// ActorAuthenticator resolves a presented actor token.
type ActorAuthenticator interface {
	Authenticate(ctx context.Context, kind, token string) (auth.ActorToken, error)
}

// StaffAuth requires a bearer JWT and puts the session on the request
// context.
func StaffAuth(tm *auth.TokenManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := auth.ExtractBearer(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return abort(c, http.StatusUnauthorized, "unauthenticated", "se requiere una sesión válida")
			}
			s, err := tm.Verify(raw)
			if err != nil {
				return abort(c, http.StatusUnauthorized, "unauthenticated", "se requiere una sesión válida")
			}
			setPrincipal(c, s)
			return next(c)
		}
	}
}

// ActorAuth authenticates the :type/:token pair of the route. Every way a
// token can be wrong answers the same 401.
func ActorAuth(a ActorAuthenticator, log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			who, err := a.Authenticate(c.Request().Context(), c.Param("type"), c.Param("token"))
			if err != nil {
				if errors.Is(err, actor.ErrTokenInvalid) {
					return unauthorized(c)
				}
				log.Error("actor authentication failed", slog.String("route", c.Path()), slog.String("error", err.Error()))
				return abort(c, http.StatusInternalServerError, "internal_error", "ocurrió un error interno; intente de nuevo más tarde")
			}
			setPrincipal(c, who)
			return next(c)
		}
	}
}

func setPrincipal(c echo.Context, p auth.Principal) {
	req := c.Request()
	c.SetRequest(req.WithContext(auth.WithPrincipal(req.Context(), p)))
}
