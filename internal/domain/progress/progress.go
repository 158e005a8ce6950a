package progress

import (
	"math"

	"leaseprotect/internal/domain/actor"
	"leaseprotect/internal/domain/document"
	"leaseprotect/internal/domain/policy"
)

const (
	fieldWeight = 0.6
	docWeight   = 0.4
)

// AllComplete is true when every required collection is non-empty, the
// count constraints hold, and every actor in those collections has
// informationComplete set.
func AllComplete(gt policy.GuarantorType, actors []actor.Actor) bool {
	return allRequired(gt, actors, func(a *actor.Actor) bool { return a.InformationComplete })
}

// AllApproved is AllComplete with verification APPROVED on top.
func AllApproved(gt policy.GuarantorType, actors []actor.Actor) bool {
	return allRequired(gt, actors, func(a *actor.Actor) bool {
		return a.InformationComplete && a.VerificationStatus == actor.VerificationApproved
	})
}

func allRequired(gt policy.GuarantorType, actors []actor.Actor, ok func(a *actor.Actor) bool) bool {
	if !gt.Valid() || CheckComposition(actors) != nil {
		return false
	}
	byKind := groupByKind(actors)
	for _, req := range Required(gt) {
		if !req.Required() {
			continue
		}
		group := byKind[req.Kind]
		if len(group) < req.Min || (req.Max > 0 && len(group) > req.Max) {
			return false
		}
		for i := range group {
			if !ok(group[i]) {
				return false
			}
		}
	}
	return true
}

// CheckComposition verifies the structural actor invariant: exactly one
// tenant and at least one landlord, exactly one of them primary.
func CheckComposition(actors []actor.Actor) error {
	var tenants, landlords, primaries int
	for i := range actors {
		switch actors[i].Kind {
		case actor.KindTenant:
			tenants++
		case actor.KindLandlord:
			landlords++
			if actors[i].IsPrimary {
				primaries++
			}
		}
	}
	if tenants != 1 || landlords < 1 || primaries != 1 {
		return policy.ErrActorInvariant
	}
	return nil
}

func groupByKind(actors []actor.Actor) map[actor.Kind][]*actor.Actor {
	out := make(map[actor.Kind][]*actor.Actor, 4)
	for i := range actors {
		a := &actors[i]
		out[a.Kind] = append(out[a.Kind], a)
	}
	return out
}

type ActorProgress struct {
	ActorID             string                   `json:"actor_id"`
	Kind                actor.Kind               `json:"kind"`
	Name                string                   `json:"name"`
	Percent             int                      `json:"percent"`
	InformationComplete bool                     `json:"information_complete"`
	VerificationStatus  actor.VerificationStatus `json:"verification_status"`
	MissingFields       []string                 `json:"missing_fields,omitempty"`
	MissingDocuments    []document.Category      `json:"missing_documents,omitempty"`
}

// ForActor blends field fill rate and required-document coverage. A
// complete actor is always 100.
func ForActor(a *actor.Actor, docs []document.Document) ActorProgress {
	out := ActorProgress{
		ActorID:             a.ActorID,
		Kind:                a.Kind,
		Name:                a.DisplayName(),
		InformationComplete: a.InformationComplete,
		VerificationStatus:  a.VerificationStatus,
	}

	fields := requiredFields(a)
	out.MissingFields = MissingFields(a)
	fieldRate := 1.0
	if len(fields) > 0 {
		fieldRate = float64(len(fields)-len(out.MissingFields)) / float64(len(fields))
	}

	have := make(map[document.Category]bool, len(docs))
	for i := range docs {
		if docs[i].RejectionReason == nil {
			have[docs[i].Category] = true
		}
	}
	wanted := RequiredDocuments(a.Kind, a.IsCompany)
	for _, c := range wanted {
		if !have[c] {
			out.MissingDocuments = append(out.MissingDocuments, c)
		}
	}
	docRate := 1.0
	if len(wanted) > 0 {
		docRate = float64(len(wanted)-len(out.MissingDocuments)) / float64(len(wanted))
	}

	if a.InformationComplete {
		out.Percent = 100
		return out
	}
	out.Percent = int(math.Floor((fieldWeight*fieldRate+docWeight*docRate)*100 + 1e-9))
	if out.Percent > 100 {
		out.Percent = 100
	}
	return out
}

type PolicyProgress struct {
	Percent        int             `json:"percent"`
	CompleteActors int             `json:"complete_actors"`
	TotalActors    int             `json:"total_actors"`
	ApprovedActors int             `json:"approved_actors"`
	AllComplete    bool            `json:"all_complete"`
	AllApproved    bool            `json:"all_approved"`
	MissingKinds   []actor.Kind    `json:"missing_kinds,omitempty"`
	Actors         []ActorProgress `json:"actors"`
}

// ForPolicy aggregates over required collections only. A required but
// empty collection counts as one slot at 0%.
func ForPolicy(gt policy.GuarantorType, actors []actor.Actor, docsByActor map[uint64][]document.Document) PolicyProgress {
	out := PolicyProgress{
		AllComplete: AllComplete(gt, actors),
		AllApproved: AllApproved(gt, actors),
		Actors:      make([]ActorProgress, 0, len(actors)),
	}
	byKind := groupByKind(actors)

	var sum, slots int
	for _, req := range Required(gt) {
		group := byKind[req.Kind]
		if !req.Required() {
			for _, a := range group {
				out.Actors = append(out.Actors, ForActor(a, docsByActor[a.ID]))
			}
			continue
		}
		if len(group) == 0 {
			out.MissingKinds = append(out.MissingKinds, req.Kind)
			slots++
			continue
		}
		for _, a := range group {
			ap := ForActor(a, docsByActor[a.ID])
			out.Actors = append(out.Actors, ap)
			sum += ap.Percent
			slots++
			out.TotalActors++
			if a.InformationComplete {
				out.CompleteActors++
			}
			if a.VerificationStatus == actor.VerificationApproved {
				out.ApprovedActors++
			}
		}
	}
	if slots > 0 {
		out.Percent = sum / slots
	}
	return out
}
