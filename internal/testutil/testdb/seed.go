package testdb

import (
	"context"
	"testing"
	"time"

	"leaseprotect/internal/adapter/repository/sqlstore"
	"leaseprotect/internal/domain/actor"
	"leaseprotect/internal/domain/policy"
	"leaseprotect/pkg/id"

	"gorm.io/gorm"
)

// Now is the fixed clock seeded rows are stamped against.
var Now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

// Clock returns Now; pass it to Machine.SetClock.
func Clock() time.Time { return Now }

const Owner = "staff-owner"

func SeedPolicy(t testing.TB, db *gorm.DB, gt policy.GuarantorType, st policy.Status) *policy.Policy {
	t.Helper()
	p := &policy.Policy{
		PolicyID:        id.NewID32(),
		PolicyNumber:    "POL-20260302-" + id.NewSuffix(6),
		Status:          st,
		GuarantorType:   gt,
		PropertyAddress: "Av. Insurgentes Sur 1234, CDMX",
		MonthlyRent:     18500,
		ContractLength:  12,
		CreatedBy:       Owner,
		StatusUpdatedAt: Now,
	}
	if err := sqlstore.NewPolicyRepository(db).Create(context.Background(), p); err != nil {
		t.Fatalf("seed policy: %v", err)
	}
	return p
}

type ActorOpt func(a *actor.Actor)

// Filled sets every field the kind requires.
func Filled() ActorOpt {
	return func(a *actor.Actor) {
		a.FirstName, a.PaternalLastName = "Ana", "López"
		a.Email, a.Phone, a.Address = a.ActorID[:8]+"@example.mx", "5512345678", "Calle 1, CDMX"
		switch a.Kind {
		case actor.KindTenant:
			a.Details.Occupation, a.Details.Employer, a.Details.MonthlyIncome = "Ingeniera", "ACME", 45000
		case actor.KindLandlord:
			a.Details.BankName, a.Details.Clabe = "BBVA", "012180001234567891"
		case actor.KindJointObligor:
			a.Details.Relationship, a.Details.MonthlyIncome = "hermano", 30000
		case actor.KindAval:
			a.Details.Relationship = "padre"
			a.Details.GuaranteePropertyAddress, a.Details.GuaranteePropertyValue = "Calle 2, Puebla", 2500000
		}
	}
}

// Complete marks the actor's information complete (and fills it).
func Complete() ActorOpt {
	return func(a *actor.Actor) {
		Filled()(a)
		a.InformationComplete = true
		at := Now
		a.CompletedAt = &at
	}
}

func Approved() ActorOpt {
	return func(a *actor.Actor) {
		Complete()(a)
		a.VerificationStatus = actor.VerificationApproved
		at := Now
		a.VerifiedAt = &at
	}
}

func Primary() ActorOpt { return func(a *actor.Actor) { a.IsPrimary = true } }

func Email(e string) ActorOpt { return func(a *actor.Actor) { a.Email = e } }

// ExpiredToken leaves the token in place but already past its expiry.
func ExpiredToken() ActorOpt {
	return func(a *actor.Actor) {
		exp := Now.Add(-time.Minute)
		a.TokenExpiresAt = &exp
	}
}

// SeedActor creates an actor with a live token expiring 30 days after Now.
func SeedActor(t testing.TB, db *gorm.DB, p *policy.Policy, kind actor.Kind, opts ...ActorOpt) *actor.Actor {
	t.Helper()
	tok := id.NewToken()
	exp := Now.Add(30 * 24 * time.Hour)
	a := &actor.Actor{
		ActorID:            id.NewID32(),
		PolicyID:           p.ID,
		Kind:               kind,
		AccessToken:        &tok,
		TokenExpiresAt:     &exp,
		VerificationStatus: actor.VerificationPending,
	}
	for _, o := range opts {
		o(a)
	}
	if err := sqlstore.NewActorRepository(db).Create(context.Background(), a); err != nil {
		t.Fatalf("seed actor: %v", err)
	}
	return a
}

// SeedParties creates a primary landlord and a tenant plus one guarantor
// per required kind, all with the same options.
func SeedParties(t testing.TB, db *gorm.DB, p *policy.Policy, opts ...ActorOpt) map[actor.Kind]*actor.Actor {
	t.Helper()
	out := map[actor.Kind]*actor.Actor{
		actor.KindLandlord: SeedActor(t, db, p, actor.KindLandlord, append([]ActorOpt{Primary()}, opts...)...),
		actor.KindTenant:   SeedActor(t, db, p, actor.KindTenant, opts...),
	}
	if p.GuarantorType == policy.GuarantorJointObligor || p.GuarantorType == policy.GuarantorBoth {
		out[actor.KindJointObligor] = SeedActor(t, db, p, actor.KindJointObligor, opts...)
	}
	if p.GuarantorType == policy.GuarantorAval || p.GuarantorType == policy.GuarantorBoth {
		out[actor.KindAval] = SeedActor(t, db, p, actor.KindAval, opts...)
	}
	return out
}

// Reload fetches the policy's current row.
func Reload(t testing.TB, db *gorm.DB, p *policy.Policy) *policy.Policy {
	t.Helper()
	got, err := sqlstore.NewPolicyRepository(db).GetByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("reload policy: %v", err)
	}
	return got
}

func ReloadActor(t testing.TB, db *gorm.DB, a *actor.Actor) *actor.Actor {
	t.Helper()
	got, err := sqlstore.NewActorRepository(db).GetByID(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("reload actor: %v", err)
	}
	return got
}

// Activity returns the action codes logged for p, oldest first.
func Activity(t testing.TB, db *gorm.DB, p *policy.Policy) []string {
	t.Helper()
	entries, err := sqlstore.NewActivityRepository(db).ListByPolicy(context.Background(), p.ID, 0)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}
