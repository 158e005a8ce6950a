package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	stdhttp "net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"testing"
	"time"

	mw "leaseprotect/internal/adapter/middleware"
	"leaseprotect/internal/adapter/repository/sqlstore"
	"leaseprotect/internal/auth"
	"leaseprotect/internal/authz"
	"leaseprotect/internal/domain/actor"
	domain "leaseprotect/internal/domain/policy"
	"leaseprotect/internal/infrastructure/storage"
	"leaseprotect/internal/testutil/notifymock"
	"leaseprotect/internal/testutil/policymock"
	"leaseprotect/internal/testutil/testdb"
	ucactor "leaseprotect/internal/usecase/actor"
	"leaseprotect/internal/usecase/document"
	"leaseprotect/internal/usecase/policy"
	"leaseprotect/internal/usecase/token"
	"leaseprotect/internal/usecase/verification"
	"leaseprotect/internal/usecase/workflow"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	staffSession = auth.Session{UserID: "staff-1", Role: auth.RoleStaff}
	ownerSession = auth.Session{UserID: testdb.Owner, Role: auth.RoleBroker}
	nosySession  = auth.Session{UserID: "broker-9", Role: auth.RoleBroker}
	pngBytes     = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
)

type server struct {
	e  *echo.Echo
	db *gorm.DB
	tm *auth.TokenManager
}

func newServer(t *testing.T) *server {
	t.Helper()
	db := testdb.Open(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store, err := storage.NewLocal(t.TempDir(), "test-secret", "https://api.example.mx")
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	log := testdb.Logger()
	m := workflow.NewMachine("https://app.example.mx", &notifymock.Recorder{}, log)
	m.SetClock(testdb.Clock)
	az, err := authz.New("")
	if err != nil {
		t.Fatalf("authz: %v", err)
	}
	repos, tx := sqlstore.ReposFor(db), sqlstore.NewGormUoW(db)

	tokens := token.NewUsecase(repos, tx, m, az, token.DefaultTTL, log)
	docs := document.NewUsecase(repos, tx, store, m, az, document.DefaultOptions(), log)
	policies := policy.NewUsecase(repos, tx, store, m, az, policy.Options{
		TokenTTL: token.DefaultTTL, MaxContractBytes: 1 << 20, StaffURLTTL: 5 * time.Minute,
	}, log)
	tm := auth.NewTokenManager("jwt-secret", "leaseprotect")

	e := echo.New()
	Register(e, Routes{
		Health:         NewHandler(nil),
		Policies:       NewPolicyHandler(policies, tokens, verification.NewUsecase(repos, tx, m, az, log), docs, log),
		Actors:         NewActorHandler(tokens, ucactor.NewUsecase(repos, tx, m, log), docs, log),
		Files:          NewFileHandler(store, log),
		Tokens:         tm,
		ActorIn:        tokens,
		Redis:          rdb,
		IdempTTL:       5 * time.Minute,
		ActorPerMinute: 100,
		BodyLimit:      "2M",
		Log:            log,
	})
	return &server{e: e, db: db, tm: tm}
}

func (s *server) do(t *testing.T, req *stdhttp.Request, as *auth.Session) *httptest.ResponseRecorder {
	t.Helper()
	if as != nil {
		tok, err := s.tm.Generate(*as, time.Hour)
		if err != nil {
			t.Fatalf("jwt: %v", err)
		}
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func jsonReq(method, target string, body any) *stdhttp.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func fileReq(t *testing.T, target, category, name, ctype string, body []byte) *stdhttp.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if category != "" {
		_ = w.WriteField("category", category)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	h.Set("Content-Type", ctype)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("part: %v", err)
	}
	_, _ = part.Write(body)
	_ = w.Close()
	req := httptest.NewRequest(stdhttp.MethodPost, target, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON: %v; raw=%s", err, rec.Body.String())
	}
	return v
}

func TestPolicyRoutes_CreateAndRead(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, jsonReq(stdhttp.MethodPost, "/policies", map[string]any{
		"guarantor_type":   "aval",
		"property_address": "Av. Reforma 100, CDMX",
		"monthly_rent":     22000,
		"landlords":        []map[string]any{{"first_name": "Luis"}},
		"tenant":           map[string]any{"first_name": "Ana", "email": "ana@example.mx"},
		"avals":            []map[string]any{{"first_name": "Rosa"}},
	}), &ownerSession)
	if rec.Code != stdhttp.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body.String())
	}
	created := decode[policy.DetailDTO](t, rec)
	if created.Policy.Status != domain.StatusDraft || len(created.Actors) != 3 {
		t.Fatalf("created = %+v", created.Policy)
	}
	target := "/policies/" + created.Policy.PolicyID

	if rec := s.do(t, jsonReq(stdhttp.MethodGet, target, nil), &ownerSession); rec.Code != stdhttp.StatusOK {
		t.Fatalf("owner get = %d", rec.Code)
	}
	if rec := s.do(t, jsonReq(stdhttp.MethodGet, target, nil), &staffSession); rec.Code != stdhttp.StatusOK {
		t.Fatalf("staff get = %d", rec.Code)
	}
	rec = s.do(t, jsonReq(stdhttp.MethodGet, target, nil), &nosySession)
	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("other broker get = %d, want 404", rec.Code)
	}
	if rec := s.do(t, jsonReq(stdhttp.MethodGet, target, nil), nil); rec.Code != stdhttp.StatusUnauthorized {
		t.Fatalf("anonymous get = %d, want 401", rec.Code)
	}
}

func TestPolicyRoutes_ValidationEnvelope(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, jsonReq(stdhttp.MethodPost, "/policies", map[string]any{
		"guarantor_type": "aval",
		"tenant":         map[string]any{"email": "not-an-email"},
	}), &staffSession)
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	body := decode[ErrorResponse](t, rec)
	if body.Code != "validation_failed" || !containsFieldMsg(body.Details, "property_address", "es obligatorio") {
		t.Fatalf("body = %+v", body)
	}

	req := httptest.NewRequest(stdhttp.MethodPost, "/policies", bytes.NewBufferString("{"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if rec := s.do(t, req, &staffSession); rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("malformed body = %d, want 400", rec.Code)
	}
}

func TestPolicyRoutes_TransitionConflictNamesGuard(t *testing.T) {
	s := newServer(t)
	p := testdb.SeedPolicy(t, s.db, domain.GuarantorAval, domain.StatusCollectingInfo)

	rec := s.do(t, jsonReq(stdhttp.MethodPut, "/policies/"+p.PolicyID+"/contracts/mark-signed", nil), &staffSession)
	if rec.Code != stdhttp.StatusConflict {
		t.Fatalf("status = %d, want 409 body=%s", rec.Code, rec.Body.String())
	}
	if body := decode[ErrorResponse](t, rec); body.Code == "" || body.Error == "" {
		t.Fatalf("conflict must carry a code and message: %+v", body)
	}
}

func TestPolicyRoutes_IdempotentCancel(t *testing.T) {
	s := newServer(t)
	p := testdb.SeedPolicy(t, s.db, domain.GuarantorAval, domain.StatusCollectingInfo)
	body := map[string]any{"reason": "CLIENT_DESISTED", "comment": "el inquilino ya no renta"}
	target := "/policies/" + p.PolicyID + "/cancel"

	send := func(key string) *httptest.ResponseRecorder {
		req := jsonReq(stdhttp.MethodPost, target, body)
		req.Header.Set(mw.HeaderIdempotencyKey, key)
		return s.do(t, req, &staffSession)
	}

	first := send("cancel-0001")
	if first.Code != stdhttp.StatusOK {
		t.Fatalf("first = %d body=%s", first.Code, first.Body.String())
	}
	again := send("cancel-0001")
	if again.Code != stdhttp.StatusOK || again.Header().Get(mw.HeaderReplayed) != "true" {
		t.Fatalf("replay = %d replayed=%q", again.Code, again.Header().Get(mw.HeaderReplayed))
	}
	if again.Body.String() != first.Body.String() {
		t.Fatalf("replayed body differs:\n%s\n%s", first.Body.String(), again.Body.String())
	}
	if rec := send("cancel-0002"); rec.Code != stdhttp.StatusConflict {
		t.Fatalf("fresh key on cancelled policy = %d, want 409", rec.Code)
	}
	if got := testdb.Reload(t, s.db, p); got.Status != domain.StatusCancelled {
		t.Fatalf("status = %s", got.Status)
	}

	// keys are scoped to the concrete resource
	other := testdb.SeedPolicy(t, s.db, domain.GuarantorAval, domain.StatusDraft)
	req := jsonReq(stdhttp.MethodPost, "/policies/"+other.PolicyID+"/cancel", body)
	req.Header.Set(mw.HeaderIdempotencyKey, "cancel-0001")
	rec := s.do(t, req, &staffSession)
	if rec.Code != stdhttp.StatusOK || rec.Header().Get(mw.HeaderReplayed) != "" {
		t.Fatalf("other policy = %d replayed=%q", rec.Code, rec.Header().Get(mw.HeaderReplayed))
	}
	if got := testdb.Reload(t, s.db, other); got.Status != domain.StatusCancelled {
		t.Fatalf("other status = %s", got.Status)
	}
}

func TestActorRoutes_ValidateAndUpload(t *testing.T) {
	s := newServer(t)
	p := testdb.SeedPolicy(t, s.db, domain.GuarantorAval, domain.StatusCollectingInfo)
	tenant := testdb.SeedActor(t, s.db, p, actor.KindTenant, testdb.Filled())
	base := "/actor/tenant/" + *tenant.AccessToken

	rec := s.do(t, jsonReq(stdhttp.MethodGet, base+"/validate", nil), nil)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("validate = %d body=%s", rec.Code, rec.Body.String())
	}
	if v := decode[token.ValidateDTO](t, rec); !v.Valid || v.Policy.PolicyID != p.PolicyID {
		t.Fatalf("validate = %+v", v)
	}

	rec = s.do(t, jsonReq(stdhttp.MethodGet, "/actor/tenant/bogus-token/validate", nil), nil)
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("bad token validate = %d, want 400", rec.Code)
	}
	if v := decode[map[string]any](t, rec); v["valid"] != false || v["code"] != "token_invalid" {
		t.Fatalf("bad token body = %v", v)
	}
	if rec := s.do(t, jsonReq(stdhttp.MethodGet, "/actor/tenant/bogus-token/documents", nil), nil); rec.Code != stdhttp.StatusUnauthorized {
		t.Fatalf("bad token list = %d, want 401", rec.Code)
	}
	// a token is bound to its kind
	if rec := s.do(t, jsonReq(stdhttp.MethodGet, "/actor/aval/"+*tenant.AccessToken+"/documents", nil), nil); rec.Code != stdhttp.StatusUnauthorized {
		t.Fatalf("wrong kind = %d, want 401", rec.Code)
	}

	rec = s.do(t, fileReq(t, base+"/documents", "IDENTIFICATION", "ine.png", "image/png", pngBytes), nil)
	if rec.Code != stdhttp.StatusCreated {
		t.Fatalf("upload = %d body=%s", rec.Code, rec.Body.String())
	}
	up := decode[map[string]any](t, rec)
	docID, _ := up["document_id"].(string)
	if docID == "" {
		t.Fatalf("upload body = %v", up)
	}

	rec = s.do(t, fileReq(t, base+"/documents", "IDENTIFICATION", "ine.exe", "application/x-msdownload", []byte("MZ\x90\x00")), nil)
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("bad mime = %d, want 400", rec.Code)
	}
	if rec := s.do(t, jsonReq(stdhttp.MethodPost, base+"/documents", nil), nil); rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("missing file = %d, want 400", rec.Code)
	}

	rec = s.do(t, jsonReq(stdhttp.MethodGet, base+"/documents", nil), nil)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}
	if l := decode[document.ListDTO](t, rec); len(l.Documents) != 1 {
		t.Fatalf("list = %+v", l)
	}

	rec = s.do(t, jsonReq(stdhttp.MethodGet, base+"/documents/"+docID+"/download", nil), nil)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("download = %d body=%s", rec.Code, rec.Body.String())
	}
	dl := decode[document.DownloadDTO](t, rec)
	u, err := url.Parse(dl.DownloadURL)
	if err != nil || dl.ExpiresIn != 30 {
		t.Fatalf("download dto = %+v", dl)
	}

	rec = s.do(t, httptest.NewRequest(stdhttp.MethodGet, u.RequestURI(), nil), nil)
	if rec.Code != stdhttp.StatusOK || !bytes.Equal(rec.Body.Bytes(), pngBytes) {
		t.Fatalf("signed fetch = %d (%d bytes)", rec.Code, rec.Body.Len())
	}
	q := u.Query()
	q.Set("sig", "deadbeef")
	rec = s.do(t, httptest.NewRequest(stdhttp.MethodGet, u.Path+"?"+q.Encode(), nil), nil)
	if rec.Code != stdhttp.StatusForbidden {
		t.Fatalf("tampered fetch = %d, want 403", rec.Code)
	}
}

func TestActorRoutes_SubmitCompletesActor(t *testing.T) {
	s := newServer(t)
	p := testdb.SeedPolicy(t, s.db, domain.GuarantorAval, domain.StatusCollectingInfo)
	landlord := testdb.SeedActor(t, s.db, p, actor.KindLandlord, testdb.Primary())

	rec := s.do(t, jsonReq(stdhttp.MethodPost, "/actor/landlord/"+*landlord.AccessToken+"/submit", map[string]any{
		"first_name":         "Luis",
		"paternal_last_name": "Pérez",
		"email":              "luis@example.mx",
		"phone":              "5512345678",
		"address":            "Calle 1, CDMX",
		"details":            map[string]any{"bank_name": "BBVA", "clabe": "012180001234567891"},
		"complete":           true,
	}), nil)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("submit = %d body=%s", rec.Code, rec.Body.String())
	}
	if got := testdb.ReloadActor(t, s.db, landlord); !got.InformationComplete {
		t.Fatalf("actor not complete: %+v", got)
	}
}

func TestActorRoutes_SubmitRejectsMalformedFields(t *testing.T) {
	s := newServer(t)
	p := testdb.SeedPolicy(t, s.db, domain.GuarantorAval, domain.StatusCollectingInfo)
	tenant := testdb.SeedActor(t, s.db, p, actor.KindTenant)
	target := "/actor/tenant/" + *tenant.AccessToken + "/submit"

	rec := s.do(t, jsonReq(stdhttp.MethodPost, target, map[string]any{
		"first_name": "Ana",
		"email":      "not-an-email",
		"phone":      "12",
		"rfc":        "XX",
		"references": []map[string]any{{"type": "BOGUS", "name": "Pedro", "phone": "123", "email": "nope"}},
	}), nil)
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 body=%s", rec.Code, rec.Body.String())
	}
	body := decode[ErrorResponse](t, rec)
	for field, msg := range map[string]string{
		"email": "debe ser un correo válido",
		"phone": "debe tener 10 dígitos",
		"rfc":   "debe ser un RFC válido",
		"type":  "debe ser uno de: PERSONAL COMMERCIAL",
	} {
		if !containsFieldMsg(body.Details, field, msg) {
			t.Fatalf("missing %s=%q in %+v", field, msg, body.Details)
		}
	}
	if got := testdb.ReloadActor(t, s.db, tenant); got.Email == "not-an-email" || got.FirstName == "Ana" {
		t.Fatalf("rejected form was saved: %+v", got)
	}

	rec = s.do(t, jsonReq(stdhttp.MethodPost, target, map[string]any{
		"first_name": "Ana",
		"references": []map[string]any{{"type": "PERSONAL", "name": "Pedro", "phone": "5512345678", "email": "pedro@example.mx"}},
	}), nil)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("well-formed partial save = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestWriteError_HidesInfraCause(t *testing.T) {
	e := echo.New()
	e.Validator = NewValidator()
	log := testdb.Logger()
	repos := sqlstore.ReposFor(testdb.Open(t))
	repos.Policies = &policymock.Repo{
		GetByPolicyIDFn: func(context.Context, string) (*domain.Policy, error) {
			return nil, errors.New("dial tcp 10.0.0.5:3306: connection refused")
		},
	}
	az, _ := authz.New("")
	m := workflow.NewMachine("https://app.example.mx", &notifymock.Recorder{}, log)
	uc := policy.NewUsecase(repos, nil, nil, m, az, policy.Options{}, log)
	h := NewPolicyHandler(uc, nil, nil, nil, log)

	req := httptest.NewRequest(stdhttp.MethodGet, "/policies/abc", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), staffSession))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("abc")

	if err := h.Get(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != stdhttp.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := decode[ErrorResponse](t, rec)
	if body.Error != genericFailure || bytes.Contains(rec.Body.Bytes(), []byte("10.0.0.5")) {
		t.Fatalf("infra detail leaked: %s", rec.Body.String())
	}
}
