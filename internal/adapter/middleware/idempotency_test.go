package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"leaseprotect/internal/auth"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var staffSession = auth.Session{UserID: "staff-1", Role: auth.RoleStaff}

// withSession stands in for StaffAuth.
func withSession(s auth.Session) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			setPrincipal(c, s)
			return next(c)
		}
	}
}

// helper: new Echo with the middleware and a simple route
func setupEcho(rdb *redis.Client, ttl time.Duration, handler echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(withSession(staffSession), Idempotency(rdb, ttl, quiet))
	e.POST("/policies", handler)
	e.GET("/policies", handler) // for non-mutating bypass test
	return e
}

func mkJSONBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(b)
}

func doReq(t *testing.T, e *echo.Echo, method, path string, body io.Reader, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, rdb
}

// counting handler to tell real executions from replays
func countingHandler(n *int32) echo.HandlerFunc {
	return func(c echo.Context) error {
		atomic.AddInt32(n, 1)
		return c.JSON(http.StatusCreated, map[string]any{"ok": true})
	}
}

const idemKey = "3f9a6a1b-3d54-4fbe-8b3a-6b3e8d6b2c88"

func Test_BypassWithoutKeyOrOnGET(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	var n int32
	e := setupEcho(rdb, 30*time.Second, countingHandler(&n))

	for i := 0; i < 2; i++ {
		if rec := doReq(t, e, http.MethodPost, "/policies", mkJSONBody(t, map[string]int{"x": 1}), nil); rec.Code != http.StatusCreated {
			t.Fatalf("no key => want 201, got %d", rec.Code)
		}
	}
	if rec := doReq(t, e, http.MethodGet, "/policies", nil, map[string]string{HeaderIdempotencyKey: idemKey}); rec.Code != http.StatusCreated {
		t.Fatalf("GET => want handler status, got %d", rec.Code)
	}
	if n != 3 {
		t.Fatalf("handler ran %d times, want 3", n)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("nothing should be stored, got %v", mr.Keys())
	}
}

func Test_InvalidKey(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	var n int32
	e := setupEcho(rdb, 30*time.Second, countingHandler(&n))

	for _, k := range []string{"short", "has spaces in it", "ñññññññññ"} {
		rec := doReq(t, e, http.MethodPost, "/policies", mkJSONBody(t, map[string]int{"x": 1}), map[string]string{HeaderIdempotencyKey: k})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("key %q => want 400, got %d", k, rec.Code)
		}
	}
	if n != 0 {
		t.Fatal("handler must not run")
	}
}

func Test_HappyPath_Then_Replay(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	var n int32
	e := setupEcho(rdb, 2*time.Minute, countingHandler(&n))
	h := map[string]string{HeaderIdempotencyKey: idemKey}

	rec1 := doReq(t, e, http.MethodPost, "/policies", mkJSONBody(t, map[string]any{"guarantor_type": "AVAL"}), h)
	if rec1.Code != http.StatusCreated {
		t.Fatalf("first request => want 201, got %d, body: %s", rec1.Code, rec1.Body.String())
	}
	rec2 := doReq(t, e, http.MethodPost, "/policies", mkJSONBody(t, map[string]any{"guarantor_type": "AVAL"}), h)
	if rec2.Code != http.StatusCreated {
		t.Fatalf("replay => want 201, got %d, body: %s", rec2.Code, rec2.Body.String())
	}
	if rec1.Body.String() != rec2.Body.String() {
		t.Fatalf("replay body mismatch: %q vs %q", rec1.Body.String(), rec2.Body.String())
	}
	if rec2.Header().Get(HeaderReplayed) != "true" {
		t.Fatal("replay header missing")
	}
	if n != 1 {
		t.Fatalf("handler ran %d times, want 1", n)
	}
}

func Test_KeyIsScopedToPrincipal(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	var n int32
	other := auth.Session{UserID: "broker-2", Role: auth.RoleBroker}

	for _, s := range []auth.Session{staffSession, other} {
		e := echo.New()
		e.Use(withSession(s), Idempotency(rdb, time.Minute, quiet))
		e.POST("/policies", countingHandler(&n))
		doReq(t, e, http.MethodPost, "/policies", bytes.NewReader([]byte(`{"x":1}`)), map[string]string{HeaderIdempotencyKey: idemKey})
	}
	if n != 2 {
		t.Fatalf("same key from two principals must both run, ran %d", n)
	}
}

func Test_ServerErrorsAreNotPinned(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	var n int32
	e := setupEcho(rdb, time.Minute, func(c echo.Context) error {
		atomic.AddInt32(&n, 1)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "boom"})
	})
	h := map[string]string{HeaderIdempotencyKey: idemKey}
	doReq(t, e, http.MethodPost, "/policies", bytes.NewReader([]byte(`{}`)), h)
	doReq(t, e, http.MethodPost, "/policies", bytes.NewReader([]byte(`{}`)), h)
	if n != 2 {
		t.Fatalf("a 500 must be retryable, handler ran %d times", n)
	}
}

func Test_Conflict_When_InProgress(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	var n int32
	e := setupEcho(rdb, 2*time.Minute, countingHandler(&n))
	body := []byte(`{"x":1}`)

	key := buildKey(http.MethodPost, "/policies", staffSession.Subject(), idemKey)
	entry := idempEntry{InProgress: true, BodySHA256: bodyHash(body), Subject: staffSession.Subject(), CreatedAt: nowUTC()}
	if ok, err := provisionalSet(context.Background(), rdb, key, entry); err != nil || !ok {
		t.Fatalf("seed provisional failed, ok=%v err=%v", ok, err)
	}

	rec := doReq(t, e, http.MethodPost, "/policies", bytes.NewReader(body), map[string]string{HeaderIdempotencyKey: idemKey})
	if rec.Code != http.StatusConflict {
		t.Fatalf("in-progress => want 409, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func Test_SameKey_DifferentBody(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	var n int32
	e := setupEcho(rdb, 2*time.Minute, countingHandler(&n))

	key := buildKey(http.MethodPost, "/policies", staffSession.Subject(), idemKey)
	final := idempEntry{
		Code:       http.StatusCreated,
		Body:       []byte(`{"ok":true}`),
		BodySHA256: bodyHash([]byte(`{"x":1}`)),
		Subject:    staffSession.Subject(),
		CreatedAt:  nowUTC(),
	}
	if err := saveFinal(context.Background(), rdb, key, final, 5*time.Minute); err != nil {
		t.Fatalf("seed final failed: %v", err)
	}

	rec := doReq(t, e, http.MethodPost, "/policies", bytes.NewReader([]byte(`{"x":2}`)), map[string]string{HeaderIdempotencyKey: idemKey})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("different body same key => want 422, got %d", rec.Code)
	}
	if n != 0 {
		t.Fatal("handler must not run")
	}
}

func Test_StoreUnavailable_Returns503(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	var n int32
	e := setupEcho(rdb, time.Minute, countingHandler(&n))

	rec := doReq(t, e, http.MethodPost, "/policies", bytes.NewReader([]byte(`{}`)), map[string]string{HeaderIdempotencyKey: idemKey})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("store unavailable => want 503, got %d", rec.Code)
	}
}
