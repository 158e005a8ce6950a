package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// RateLimit is a fixed-window counter per client IP shared through redis,
// so every instance enforces the same budget. limit <= 0 disables it. A
// redis failure lets the request through.
func RateLimit(rdb *redis.Client, scope string, limit int, window time.Duration, log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if limit <= 0 {
			return next
		}
		if window < time.Second {
			window = time.Minute
		}
		return func(c echo.Context) error {
			now := nowUTC()
			slot := now.Unix() / int64(window.Seconds())
			key := "rl:" + scope + ":" + c.RealIP() + ":" + strconv.FormatInt(slot, 10)

			ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
			defer cancel()
			var incr *redis.IntCmd
			_, err := rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
				incr = p.Incr(ctx, key)
				p.Expire(ctx, key, window)
				return nil
			})
			if err != nil {
				log.Warn("rate limiter unavailable", slog.String("error", err.Error()))
				return next(c)
			}

			n := int(incr.Val())
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(max(limit-n, 0)))
			if n > limit {
				reset := time.Unix((slot+1)*int64(window.Seconds()), 0)
				h.Set("Retry-After", strconv.Itoa(int(reset.Sub(now).Seconds())+1))
				return abort(c, http.StatusTooManyRequests, "rate_limited", "demasiadas solicitudes; intente más tarde")
			}
			return next(c)
		}
	}
}
