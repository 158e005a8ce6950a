package policy

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"leaseprotect/internal/adapter/repository/sqlstore"
	"leaseprotect/internal/auth"
	"leaseprotect/internal/authz"
	"leaseprotect/internal/domain/actor"
	"leaseprotect/internal/domain/document"
	domain "leaseprotect/internal/domain/policy"
	"leaseprotect/internal/infrastructure/storage"
	"leaseprotect/internal/testutil/notifymock"
	"leaseprotect/internal/testutil/testdb"
	"leaseprotect/internal/usecase/workflow"

	"gorm.io/gorm"
)

var (
	staff  = auth.Session{UserID: "staff-1", Role: auth.RoleStaff}
	owner  = auth.Session{UserID: testdb.Owner, Role: auth.RoleBroker}
	nosy   = auth.Session{UserID: "broker-9", Role: auth.RoleBroker}
	pdf    = []byte("%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\ntrailer\n%%EOF\n")
	number = regexp.MustCompile(`^POL-20260302-[A-Z0-9]{6}$`)
)

type env struct {
	uc   *Usecase
	db   *gorm.DB
	sent *notifymock.Recorder
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testdb.Open(t)
	store, err := storage.NewLocal(t.TempDir(), "test-secret", "https://files.example.mx")
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	sent := &notifymock.Recorder{}
	m := workflow.NewMachine("https://app.example.mx", sent, testdb.Logger())
	m.SetClock(testdb.Clock)
	az, _ := authz.New("")
	opts := Options{TokenTTL: 7 * 24 * time.Hour, MaxContractBytes: 1024, StaffURLTTL: 5 * time.Minute}
	uc := NewUsecase(sqlstore.ReposFor(db), sqlstore.NewGormUoW(db), store, m, az, opts, testdb.Logger())
	return &env{uc: uc, db: db, sent: sent}
}

func contract(body []byte) ContractUpload {
	return ContractUpload{FileName: "contrato.pdf", MimeType: "application/pdf", Size: int64(len(body)), Body: bytes.NewReader(body)}
}

func TestCreate(t *testing.T) {
	e := newEnv(t)
	in := CreateInput{
		GuarantorType:   "both",
		PropertyAddress: "Av. Reforma 100, CDMX",
		MonthlyRent:     22000,
		Landlords:       []ActorInput{{FirstName: "Luis"}, {FirstName: "Marta"}},
		Tenant:          &ActorInput{FirstName: "Ana", Email: "Ana@Example.mx"},
		JointObligors:   []ActorInput{{FirstName: "Jorge"}},
		Avals:           []ActorInput{{FirstName: "Rosa"}},
	}
	got, err := e.uc.Create(context.Background(), owner, in, "10.0.0.1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !number.MatchString(got.Policy.PolicyNumber) {
		t.Fatalf("policy number = %q", got.Policy.PolicyNumber)
	}
	if got.Policy.Status != domain.StatusDraft || got.Policy.CreatedBy != testdb.Owner || got.Policy.ContractLength != 12 {
		t.Fatalf("policy = %+v", got.Policy)
	}
	if len(got.Actors) != 5 {
		t.Fatalf("actors = %d", len(got.Actors))
	}
	primaries := 0
	for _, a := range got.Actors {
		if a.AccessToken == nil || len(*a.AccessToken) < 22 {
			t.Fatalf("actor %s has no usable token", a.ActorID)
		}
		if !a.TokenExpiresAt.Equal(testdb.Now.Add(7 * 24 * time.Hour)) {
			t.Fatalf("expiry = %v", a.TokenExpiresAt)
		}
		if a.IsPrimary {
			primaries++
			if a.FirstName != "Luis" {
				t.Fatalf("first landlord must default to primary, got %s", a.FirstName)
			}
		}
		if a.Kind == actor.KindTenant && a.Email != "ana@example.mx" {
			t.Fatalf("email not normalized: %q", a.Email)
		}
	}
	if primaries != 1 {
		t.Fatalf("primaries = %d", primaries)
	}
	if got.Investigation.Verdict != domain.VerdictPending || got.Contract != nil {
		t.Fatalf("unexpected investigation/contract: %+v %+v", got.Investigation, got.Contract)
	}
	if acts := testdb.Activity(t, e.db, got.Policy); len(acts) != 1 || acts[0] != "policy_created" {
		t.Fatalf("activity = %v", acts)
	}
}

func TestCreate_Rejects(t *testing.T) {
	e := newEnv(t)
	one := []ActorInput{{FirstName: "Luis"}}
	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"unknown guarantor type", CreateInput{GuarantorType: "BOND", PropertyAddress: "x", Landlords: one}, domain.ErrInvalidGuarantorType},
		{"no landlord", CreateInput{GuarantorType: "AVAL", PropertyAddress: "x"}, domain.ErrLandlordRequired},
		{"aval on joint obligor policy", CreateInput{GuarantorType: "JOINT_OBLIGOR", PropertyAddress: "x", Landlords: one,
			Avals: []ActorInput{{FirstName: "Rosa"}}}, domain.ErrGuarantorMismatch},
		{"two primaries", CreateInput{GuarantorType: "AVAL", PropertyAddress: "x",
			Landlords: []ActorInput{{IsPrimary: true}, {IsPrimary: true}}}, actor.ErrPrimaryLandlordTaken},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.uc.Create(context.Background(), staff, tc.in, ""); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestGet_HidesOtherBrokersPolicies(t *testing.T) {
	e := newEnv(t)
	p := testdb.SeedPolicy(t, e.db, domain.GuarantorAval, domain.StatusCollectingInfo)
	testdb.SeedParties(t, e.db, p)

	got, err := e.uc.Get(context.Background(), owner, p.PolicyID)
	if err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if len(got.Actors) != 3 || got.Progress.TotalActors != 3 {
		t.Fatalf("detail = %+v", got.Progress)
	}
	if _, err := e.uc.Get(context.Background(), nosy, p.PolicyID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("other broker: %v", err)
	}
}

func TestAddActor(t *testing.T) {
	e := newEnv(t)
	p := testdb.SeedPolicy(t, e.db, domain.GuarantorJointObligor, domain.StatusCollectingInfo)
	testdb.SeedParties(t, e.db, p)
	ctx := context.Background()

	if _, err := e.uc.AddActor(ctx, staff, p.PolicyID, "tenant", ActorInput{FirstName: "Otro"}, ""); !errors.Is(err, actor.ErrTenantExists) {
		t.Fatalf("second tenant: %v", err)
	}
	if _, err := e.uc.AddActor(ctx, staff, p.PolicyID, "aval", ActorInput{FirstName: "Rosa"}, ""); !errors.Is(err, domain.ErrGuarantorMismatch) {
		t.Fatalf("aval on joint obligor policy: %v", err)
	}
	if _, err := e.uc.AddActor(ctx, staff, p.PolicyID, "landlord", ActorInput{IsPrimary: true}, ""); !errors.Is(err, actor.ErrPrimaryLandlordTaken) {
		t.Fatalf("second primary: %v", err)
	}

	a, err := e.uc.AddActor(ctx, staff, p.PolicyID, "joint-obligor", ActorInput{FirstName: "Jorge", Email: "jorge@example.mx"}, "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if a.Kind != actor.KindJointObligor || a.AccessToken == nil || a.IsPrimary {
		t.Fatalf("actor = %+v", a)
	}
	if inv, _, _ := e.sent.Counts(); inv != 1 {
		t.Fatalf("invitations = %d", inv)
	}
	if acts := testdb.Activity(t, e.db, p); acts[len(acts)-1] != "actor_added" {
		t.Fatalf("activity = %v", acts)
	}

	locked := testdb.SeedPolicy(t, e.db, domain.GuarantorJointObligor, domain.StatusContractPending)
	if _, err := e.uc.AddActor(ctx, staff, locked.PolicyID, "landlord", ActorInput{}, ""); !errors.Is(err, domain.ErrNotAcceptingChanges) {
		t.Fatalf("locked policy: %v", err)
	}
}

func TestUpdateStatus_StartCollecting(t *testing.T) {
	t.Run("missing tenant", func(t *testing.T) {
		e := newEnv(t)
		p := testdb.SeedPolicy(t, e.db, domain.GuarantorAval, domain.StatusDraft)
		testdb.SeedActor(t, e.db, p, actor.KindLandlord, testdb.Primary())
		_, err := e.uc.UpdateStatus(context.Background(), staff, p.PolicyID, UpdateStatusInput{Status: "COLLECTING_INFO"}, "")
		if !errors.Is(err, domain.ErrActorInvariant) {
			t.Fatalf("err = %v", err)
		}
		if testdb.Reload(t, e.db, p).Status != domain.StatusDraft {
			t.Fatal("status moved")
		}
	})

	t.Run("invites pending actors", func(t *testing.T) {
		e := newEnv(t)
		p := testdb.SeedPolicy(t, e.db, domain.GuarantorAval, domain.StatusDraft)
		testdb.SeedParties(t, e.db, p, testdb.Email("x@example.mx"))
		got, err := e.uc.UpdateStatus(context.Background(), staff, p.PolicyID, UpdateStatusInput{Status: "collecting_info"}, "")
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		if got.Status != domain.StatusCollectingInfo || got.SubmittedAt == nil {
			t.Fatalf("policy = %+v", got)
		}
		if inv, _, _ := e.sent.Counts(); inv != 3 {
			t.Fatalf("invitations = %d", inv)
		}
	})

	t.Run("prefilled actors advance at once", func(t *testing.T) {
		e := newEnv(t)
		p := testdb.SeedPolicy(t, e.db, domain.GuarantorAval, domain.StatusDraft)
		testdb.SeedParties(t, e.db, p, testdb.Complete())
		got, err := e.uc.UpdateStatus(context.Background(), staff, p.PolicyID, UpdateStatusInput{Status: "COLLECTING_INFO"}, "")
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		if got.Status != domain.StatusUnderInvestigation {
			t.Fatalf("status = %s", got.Status)
		}
		want := []string{"status_collecting_info", "all_actors_complete"}
		if acts := testdb.Activity(t, e.db, p); len(acts) != 2 || acts[0] != want[0] || acts[1] != want[1] {
			t.Fatalf("activity = %v", acts)
		}
	})
}

func TestUpdateStatus_Refusals(t *testing.T) {
	e := newEnv(t)
	p := testdb.SeedPolicy(t, e.db, domain.GuarantorAval, domain.StatusPendingApproval)
	ctx := context.Background()

	if _, err := e.uc.UpdateStatus(ctx, staff, p.PolicyID, UpdateStatusInput{Status: "SHIPPED"}, ""); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("unknown status: %v", err)
	}
	if _, err := e.uc.UpdateStatus(ctx, staff, p.PolicyID, UpdateStatusInput{Status: "ACTIVE"}, ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("skip ahead: %v", err)
	}
	if _, err := e.uc.UpdateStatus(ctx, owner, p.PolicyID, UpdateStatusInput{Status: "CONTRACT_PENDING"}, ""); !errors.Is(err, authz.ErrForbidden) {
		t.Fatalf("broker approval: %v", err)
	}

	got, err := e.uc.UpdateStatus(ctx, staff, p.PolicyID, UpdateStatusInput{Status: "CONTRACT_PENDING", ReviewNotes: "ok"}, "")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Status != domain.StatusContractPending || got.ApprovedAt == nil || *got.ReviewNotes != "ok" {
		t.Fatalf("policy = %+v", got)
	}
}

func TestInvestigationAndOverride(t *testing.T) {
	e := newEnv(t)
	p := testdb.SeedPolicy(t, e.db, domain.GuarantorAval, domain.StatusUnderInvestigation)
	ctx := context.Background()

	if _, err := e.uc.RecordInvestigation(ctx, staff, p.PolicyID, VerdictInput{Verdict: "REJECTED"}, ""); !errors.Is(err, domain.ErrReasonRequired) {
		t.Fatalf("missing reason: %v", err)
	}
	if _, err := e.uc.LandlordOverride(ctx, owner, p.PolicyID, OverrideInput{Decision: "PROCEED"}, ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("override before rejection: %v", err)
	}

	inv, err := e.uc.RecordInvestigation(ctx, staff, p.PolicyID, VerdictInput{Verdict: "rejected", Reason: "buró negativo"}, "")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if inv.Verdict != domain.VerdictRejected || inv.DecidedBy != staff.UserID {
		t.Fatalf("investigation = %+v", inv)
	}
	if st := testdb.Reload(t, e.db, p).Status; st != domain.StatusInvestigationRejected {
		t.Fatalf("status = %s", st)
	}

	if _, err := e.uc.LandlordOverride(ctx, owner, p.PolicyID, OverrideInput{Decision: "maybe"}, ""); !errors.Is(err, domain.ErrInvalidDecision) {
		t.Fatalf("bad decision: %v", err)
	}
	got, err := e.uc.LandlordOverride(ctx, owner, p.PolicyID, OverrideInput{Decision: "PROCEED", Notes: "conozco al inquilino"}, "")
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if got.Status != domain.StatusContractPending {
		t.Fatalf("status = %s", got.Status)
	}
	if _, err := e.uc.LandlordOverride(ctx, owner, p.PolicyID, OverrideInput{Decision: "PROCEED"}, ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("second override: %v", err)
	}
}

func TestOverrideReject_OnlyOnce(t *testing.T) {
	e := newEnv(t)
	p := testdb.SeedPolicy(t, e.db, domain.GuarantorAval, domain.StatusUnderInvestigation)
	ctx := context.Background()
	if _, err := e.uc.RecordInvestigation(ctx, staff, p.PolicyID, VerdictInput{Verdict: "REJECTED", Reason: "ingresos"}, ""); err != nil {
		t.Fatalf("reject: %v", err)
	}
	got, err := e.uc.LandlordOverride(ctx, owner, p.PolicyID, OverrideInput{Decision: "REJECT"}, "")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got.Status != domain.StatusInvestigationRejected {
		t.Fatalf("status = %s", got.Status)
	}
	if _, err := e.uc.LandlordOverride(ctx, owner, p.PolicyID, OverrideInput{Decision: "PROCEED"}, ""); !errors.Is(err, domain.ErrOverrideAlreadyMade) {
		t.Fatalf("second decision: %v", err)
	}
}

func TestContractLifecycle(t *testing.T) {
	e := newEnv(t)
	p := testdb.SeedPolicy(t, e.db, domain.GuarantorAval, domain.StatusContractPending)
	parties := testdb.SeedParties(t, e.db, p, testdb.Approved())
	ctx := context.Background()

	if _, err := e.uc.MarkSigned(ctx, staff, p.PolicyID, ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("sign before upload: %v", err)
	}
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	if _, err := e.uc.UploadContract(ctx, staff, p.PolicyID, ContractUpload{FileName: "c.png", MimeType: "application/pdf",
		Size: int64(len(png)), Body: bytes.NewReader(png)}, ""); !errors.Is(err, document.ErrMimeNotAllowed) {
		t.Fatalf("png disguised as pdf: %v", err)
	}
	if _, err := e.uc.UploadContract(ctx, staff, p.PolicyID, contract(make([]byte, 2048)), ""); !errors.Is(err, document.ErrTooLarge) {
		t.Fatalf("too large: %v", err)
	}

	c1, err := e.uc.UploadContract(ctx, staff, p.PolicyID, contract(pdf), "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if c1.Version != 1 || !c1.IsCurrent || testdb.Reload(t, e.db, p).Status != domain.StatusContractUploaded {
		t.Fatalf("first upload = %+v", c1)
	}
	c2, err := e.uc.UploadContract(ctx, staff, p.PolicyID, contract(pdf), "")
	if err != nil {
		t.Fatalf("re-upload: %v", err)
	}
	if c2.Version != 2 {
		t.Fatalf("version = %d", c2.Version)
	}
	if c1.StorageKey == c2.StorageKey || !strings.Contains(c2.StorageKey, c2.ContractID) {
		t.Fatalf("contract keys: %s / %s", c1.StorageKey, c2.StorageKey)
	}
	var currents int64
	e.db.Model(&domain.Contract{}).Where("policy_id = ? AND is_current = ?", p.ID, true).Count(&currents)
	if currents != 1 {
		t.Fatalf("current contracts = %d", currents)
	}

	link, err := e.uc.ContractURL(ctx, staff, p.PolicyID, "")
	if err != nil {
		t.Fatalf("contract url: %v", err)
	}
	if link.Version != 2 || link.ExpiresIn != 300 {
		t.Fatalf("link = %+v", link)
	}

	signed, err := e.uc.MarkSigned(ctx, staff, p.PolicyID, "")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if signed.Status != domain.StatusContractSigned || !signed.PolicyExpiresAt.Equal(testdb.Now.AddDate(0, 12, 0)) {
		t.Fatalf("signed = %+v", signed)
	}
	if _, err := e.uc.UploadContract(ctx, staff, p.PolicyID, contract(pdf), ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("upload after signing: %v", err)
	}

	active, err := e.uc.UpdateStatus(ctx, staff, p.PolicyID, UpdateStatusInput{Status: "ACTIVE"}, "")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if active.Status != domain.StatusActive || active.ActivatedAt == nil {
		t.Fatalf("active = %+v", active)
	}
	if testdb.ReloadActor(t, e.db, parties[actor.KindTenant]).TokenValid(testdb.Now) {
		t.Fatal("tokens must be revoked on activation")
	}
}

func TestCancel(t *testing.T) {
	e := newEnv(t)
	p := testdb.SeedPolicy(t, e.db, domain.GuarantorAval, domain.StatusCollectingInfo)
	tenant := testdb.SeedActor(t, e.db, p, actor.KindTenant)
	ctx := context.Background()

	if _, err := e.uc.Cancel(ctx, owner, p.PolicyID, CancelInput{Reason: "CLIENT_DESISTED", Comment: "  "}, ""); !errors.Is(err, domain.ErrCancelDetails) {
		t.Fatalf("blank comment: %v", err)
	}
	if _, err := e.uc.Cancel(ctx, owner, p.PolicyID, CancelInput{Reason: "BORED", Comment: "x"}, ""); !errors.Is(err, domain.ErrCancelDetails) {
		t.Fatalf("unknown reason: %v", err)
	}
	if _, err := e.uc.Cancel(ctx, nosy, p.PolicyID, CancelInput{Reason: "OTHER", Comment: "x"}, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign broker: %v", err)
	}

	got, err := e.uc.Cancel(ctx, owner, p.PolicyID, CancelInput{Reason: "client_desisted", Comment: "se mudó"}, "")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != domain.StatusCancelled || *got.CancellationReason != domain.CancelClientDesisted {
		t.Fatalf("policy = %+v", got)
	}
	if _, _, c := e.sent.Counts(); c != 1 {
		t.Fatalf("cancellations sent = %d", c)
	}
	if testdb.ReloadActor(t, e.db, tenant).TokenValid(testdb.Now) {
		t.Fatal("token still live")
	}
	if _, err := e.uc.Cancel(ctx, owner, p.PolicyID, CancelInput{Reason: "OTHER", Comment: "x"}, ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("cancel twice: %v", err)
	}
}

func TestProgressAndActivity(t *testing.T) {
	e := newEnv(t)
	p := testdb.SeedPolicy(t, e.db, domain.GuarantorAval, domain.StatusCollectingInfo)
	testdb.SeedActor(t, e.db, p, actor.KindLandlord, testdb.Primary(), testdb.Complete())
	testdb.SeedActor(t, e.db, p, actor.KindTenant)
	ctx := context.Background()

	pr, err := e.uc.Progress(ctx, staff, p.PolicyID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if pr.AllComplete || pr.CompleteActors != 1 {
		t.Fatalf("progress = %+v", pr)
	}
	if len(pr.MissingKinds) != 1 || pr.MissingKinds[0] != actor.KindAval {
		t.Fatalf("missing kinds = %v", pr.MissingKinds)
	}

	log, err := e.uc.Activity(ctx, staff, p.PolicyID, 0)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if log.PolicyID != p.PolicyID || log.Entries == nil || len(log.Entries) != 0 {
		t.Fatalf("activity = %+v", log)
	}
}
