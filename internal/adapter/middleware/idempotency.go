package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"leaseprotect/internal/auth"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

const (
	// How long we hold the "in-progress" lock before it must be refreshed by finishing the handler.
	provisionalLockTTL = 60 * time.Second

	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

// ---- Data types ----
type idempEntry struct {
	InProgress bool      `json:"in_progress"`
	Code       int       `json:"code"`
	Body       []byte    `json:"body"`
	BodySHA256 string    `json:"body_sha256"`
	Subject    string    `json:"subject"`
	CreatedAt  time.Time `json:"created_at"`
}

type respRecorder struct {
	w    http.ResponseWriter
	buf  *bytes.Buffer
	code int
}

func (r *respRecorder) Header() http.Header { return r.w.Header() }
func (r *respRecorder) Write(b []byte) (int, error) {
	if r.buf != nil {
		r.buf.Write(b)
	}
	return r.w.Write(b)
}
func (r *respRecorder) WriteHeader(statusCode int) { r.code = statusCode; r.w.WriteHeader(statusCode) }

// Idempotency replays the stored response of a mutating request that
// carries an Idempotency-Key already seen for the same principal and
// route. Requests without the header pass through, as do multipart
// uploads, whose bodies are too large to buffer and hash. Run it after
// the auth middleware so the key is scoped to the caller.
func Idempotency(rdb *redis.Client, ttl time.Duration, log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			method := req.Method

			// Only enforce on mutating methods
			switch method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}
			idemKey := strings.TrimSpace(req.Header.Get(HeaderIdempotencyKey))
			if idemKey == "" || strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
				return next(c)
			}
			if !validIdemKey(idemKey) {
				return abort(c, http.StatusBadRequest, "invalid_idempotency_key", "Idempotency-Key inválido")
			}
			subject := "anonymous"
			if p, ok := auth.FromContext(req.Context()); ok {
				subject = p.Subject()
			}

			// Buffer & hash body
			var body []byte
			if req.Body != nil {
				body, _ = io.ReadAll(req.Body)
			}
			req.Body = io.NopCloser(bytes.NewBuffer(body))
			bhash := bodyHash(body)

			key := buildKey(method, c.Request().URL.Path, subject, idemKey)
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()

			entry := idempEntry{InProgress: true, BodySHA256: bhash, Subject: subject, CreatedAt: nowUTC()}
			ok, err := provisionalSet(ctx, rdb, key, entry)
			if err != nil {
				log.Warn("idempotency store unavailable", slog.String("error", err.Error()))
				return abort(c, http.StatusServiceUnavailable, "idempotency_unavailable", "almacén de idempotencia no disponible")
			}
			if !ok {
				// Key exists: body must match, and we may be able to replay
				cur, errLoad := loadEntry(ctx, rdb, key)
				if errLoad != nil {
					log.Warn("idempotency entry not loaded", slog.String("key", key), slog.String("error", errLoad.Error()))
				}
				if cur.BodySHA256 != "" && cur.BodySHA256 != bhash {
					return abort(c, http.StatusUnprocessableEntity, "idempotency_key_reused",
						"Idempotency-Key reutilizado con un cuerpo distinto")
				}
				if !cur.InProgress && cur.Code != 0 {
					c.Response().Header().Set(HeaderReplayed, "true")
					return c.Blob(cur.Code, echo.MIMEApplicationJSONCharsetUTF8, cur.Body)
				}
				return abort(c, http.StatusConflict, "request_in_progress", "la solicitud ya está en proceso")
			}

			rec := &respRecorder{w: c.Response().Writer, buf: &bytes.Buffer{}, code: http.StatusOK}
			c.Response().Writer = rec
			if err := next(c); err != nil {
				c.Error(err)
			}

			// server failures are not pinned; the client may retry them
			if rec.code >= http.StatusInternalServerError {
				_ = rdb.Del(context.WithoutCancel(ctx), key).Err()
				return nil
			}
			final := idempEntry{
				Code:       rec.code,
				Body:       rec.buf.Bytes(),
				BodySHA256: bhash,
				Subject:    subject,
				CreatedAt:  nowUTC(),
			}
			if err := saveFinal(context.WithoutCancel(ctx), rdb, key, final, ttl); err != nil {
				log.Warn("idempotency result not stored", slog.String("key", key), slog.String("error", err.Error()))
			}
			return nil
		}
	}
}
