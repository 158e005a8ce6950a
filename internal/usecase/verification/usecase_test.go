package verification

import (
	"context"
	"errors"
	"testing"

	"leaseprotect/internal/domain/uow"

	"leaseprotect/internal/adapter/repository/sqlstore"
	"leaseprotect/internal/auth"
	"leaseprotect/internal/authz"
	"leaseprotect/internal/domain/actor"
	"leaseprotect/internal/domain/policy"
	"leaseprotect/internal/testutil/notifymock"
	"leaseprotect/internal/testutil/testdb"
	"leaseprotect/internal/testutil/uowmock"
	"leaseprotect/internal/usecase/workflow"

	"gorm.io/gorm"
)

var (
	staff  = auth.Session{UserID: "staff-1", Role: auth.RoleStaff}
	broker = auth.Session{UserID: testdb.Owner, Role: auth.RoleBroker}
)

func newUsecase(t *testing.T) (*Usecase, *gorm.DB, *notifymock.Recorder) {
	t.Helper()
	db := testdb.Open(t)
	sent := &notifymock.Recorder{}
	m := workflow.NewMachine("https://app.example.mx", sent, testdb.Logger())
	m.SetClock(testdb.Clock)
	az, _ := authz.New("")
	return NewUsecase(sqlstore.ReposFor(db), sqlstore.NewGormUoW(db), m, az, testdb.Logger()), db, sent
}

func TestDecide_RejectThenApprove(t *testing.T) {
	uc, db, sent := newUsecase(t)
	p := testdb.SeedPolicy(t, db, policy.GuarantorAval, policy.StatusUnderInvestigation)
	parties := testdb.SeedParties(t, db, p, testdb.Complete())
	tenant := parties[actor.KindTenant]

	res, err := uc.Decide(context.Background(), staff, p.PolicyID, "tenant", tenant.ActorID,
		DecideInput{Action: ActionReject, Reason: "documento ilegible"}, "")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if res.Actor.VerificationStatus != actor.VerificationRejected || *res.Actor.RejectionReason != "documento ilegible" {
		t.Fatalf("actor = %+v", res.Actor)
	}
	if res.PolicyStatus != string(policy.StatusUnderInvestigation) || res.StatusChanged {
		t.Fatalf("policy must not move on reject: %+v", res)
	}
	if _, rej, _ := sent.Counts(); rej != 1 {
		t.Fatalf("rejections sent = %d", rej)
	}

	res, err = uc.Decide(context.Background(), staff, p.PolicyID, "tenant", tenant.ActorID, DecideInput{Action: ActionApprove}, "")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	got := testdb.ReloadActor(t, db, tenant)
	if got.VerificationStatus != actor.VerificationApproved || got.RejectionReason != nil {
		t.Fatalf("actor = %+v", got)
	}
	if res.StatusChanged {
		t.Fatal("other actors are still pending")
	}
}

func TestDecide_RejectNotificationFailureStillCommits(t *testing.T) {
	uc, db, sent := newUsecase(t)
	sent.Err = errors.New("smtp down")
	p := testdb.SeedPolicy(t, db, policy.GuarantorAval, policy.StatusUnderInvestigation)
	aval := testdb.SeedActor(t, db, p, actor.KindAval, testdb.Complete())

	if _, err := uc.Decide(context.Background(), staff, p.PolicyID, "aval", aval.ActorID,
		DecideInput{Action: ActionReject, Reason: "avalúo vencido"}, ""); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if testdb.ReloadActor(t, db, aval).VerificationStatus != actor.VerificationRejected {
		t.Fatal("decision lost")
	}
}

func TestDecide_LastApprovalAdvancesPolicy(t *testing.T) {
	uc, db, _ := newUsecase(t)
	p := testdb.SeedPolicy(t, db, policy.GuarantorJointObligor, policy.StatusUnderInvestigation)
	testdb.SeedActor(t, db, p, actor.KindLandlord, testdb.Primary(), testdb.Approved())
	testdb.SeedActor(t, db, p, actor.KindTenant, testdb.Approved())
	jo := testdb.SeedActor(t, db, p, actor.KindJointObligor, testdb.Complete())

	res, err := uc.Decide(context.Background(), staff, p.PolicyID, "JOINT_OBLIGOR", jo.ActorID, DecideInput{Action: ActionApprove}, "")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !res.StatusChanged || res.PolicyStatus != string(policy.StatusPendingApproval) {
		t.Fatalf("result = %+v", res)
	}
	acts := testdb.Activity(t, db, p)
	if len(acts) != 2 || acts[0] != "actor_approved" || acts[1] != "all_actors_approved" {
		t.Fatalf("activity = %v", acts)
	}
}

func TestDecide_Guards(t *testing.T) {
	uc, db, _ := newUsecase(t)
	p := testdb.SeedPolicy(t, db, policy.GuarantorAval, policy.StatusCollectingInfo)
	incomplete := testdb.SeedActor(t, db, p, actor.KindTenant)
	approved := testdb.SeedActor(t, db, p, actor.KindAval, testdb.Approved())
	done := testdb.SeedPolicy(t, db, policy.GuarantorAval, policy.StatusActive)
	doneTenant := testdb.SeedActor(t, db, done, actor.KindTenant, testdb.Complete())

	tests := []struct {
		name    string
		policy  *policy.Policy
		kind    string
		actorID string
		in      DecideInput
		want    error
	}{
		{"approve incomplete", p, "tenant", incomplete.ActorID, DecideInput{Action: ActionApprove}, actor.ErrIncompleteForApprove},
		{"reject without reason", p, "tenant", incomplete.ActorID, DecideInput{Action: ActionReject, Reason: "  "}, actor.ErrReasonRequired},
		{"unknown action", p, "tenant", incomplete.ActorID, DecideInput{Action: "escalate"}, actor.ErrInvalidAction},
		{"approve twice", p, "aval", approved.ActorID, DecideInput{Action: ActionApprove}, actor.ErrAlreadyApproved},
		{"reject approved", p, "aval", approved.ActorID, DecideInput{Action: ActionReject, Reason: "x"}, actor.ErrAlreadyApproved},
		{"reset pending", p, "tenant", incomplete.ActorID, DecideInput{Action: ActionReset}, actor.ErrNotRejected},
		{"kind mismatch", p, "landlord", incomplete.ActorID, DecideInput{Action: ActionApprove}, actor.ErrNotFound},
		{"terminal policy", done, "tenant", doneTenant.ActorID, DecideInput{Action: ActionApprove}, policy.ErrTerminal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := uc.Decide(context.Background(), staff, tc.policy.PolicyID, tc.kind, tc.actorID, tc.in, "")
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDecide_ResetReopensReview(t *testing.T) {
	uc, db, _ := newUsecase(t)
	p := testdb.SeedPolicy(t, db, policy.GuarantorAval, policy.StatusUnderInvestigation)
	tenant := testdb.SeedActor(t, db, p, actor.KindTenant, testdb.Complete())

	if _, err := uc.Decide(context.Background(), staff, p.PolicyID, "tenant", tenant.ActorID, DecideInput{Action: ActionReject, Reason: "falta firma"}, ""); err != nil {
		t.Fatalf("reject: %v", err)
	}
	res, err := uc.Decide(context.Background(), staff, p.PolicyID, "tenant", tenant.ActorID, DecideInput{Action: ActionReset}, "")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if res.Actor.VerificationStatus != actor.VerificationPending || res.Actor.RejectionReason != nil {
		t.Fatalf("actor = %+v", res.Actor)
	}
}

func TestDecide_BrokersCannotVerify(t *testing.T) {
	uc, db, _ := newUsecase(t)
	p := testdb.SeedPolicy(t, db, policy.GuarantorAval, policy.StatusUnderInvestigation)
	tenant := testdb.SeedActor(t, db, p, actor.KindTenant, testdb.Complete())

	_, err := uc.Decide(context.Background(), broker, p.PolicyID, "tenant", tenant.ActorID, DecideInput{Action: ActionApprove}, "")
	if !errors.Is(err, authz.ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
}

func TestDecide_CommitFailureSendsNothing(t *testing.T) {
	db := testdb.Open(t)
	repos := sqlstore.ReposFor(db)
	errCommit := errors.New("commit: connection reset")
	tx := uowmock.New().WithWithinPolicyTx(func(ctx context.Context, pk uint64, fn func(uow.Repos, *policy.Policy) error) error {
		p, err := repos.Policies.GetByIDForUpdate(ctx, pk)
		if err != nil {
			return err
		}
		if err := fn(repos, p); err != nil {
			return err
		}
		return errCommit
	})
	sent := &notifymock.Recorder{}
	m := workflow.NewMachine("https://app.example.mx", sent, testdb.Logger())
	m.SetClock(testdb.Clock)
	az, _ := authz.New("")
	uc := NewUsecase(repos, tx, m, az, testdb.Logger())

	p := testdb.SeedPolicy(t, db, policy.GuarantorAval, policy.StatusUnderInvestigation)
	tenant := testdb.SeedActor(t, db, p, actor.KindTenant, testdb.Complete())

	_, err := uc.Decide(context.Background(), staff, p.PolicyID, "tenant", tenant.ActorID,
		DecideInput{Action: ActionReject, Reason: "documento ilegible"}, "")
	if !errors.Is(err, errCommit) {
		t.Fatalf("want commit error, got %v", err)
	}
	if _, rej, _ := sent.Counts(); rej != 0 {
		t.Fatalf("rejection sent for an uncommitted decision: %d", rej)
	}
}
