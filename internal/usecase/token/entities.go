package token

import (
	"time"

	"leaseprotect/internal/domain/actor"
	"leaseprotect/internal/domain/progress"
)

// PolicySummary is the slice of a policy an external party may see.
type PolicySummary struct {
	PolicyID        string `json:"policy_id"`
	PolicyNumber    string `json:"policy_number"`
	Status          string `json:"status"`
	GuarantorType   string `json:"guarantor_type"`
	PropertyAddress string `json:"property_address"`
	AcceptsChanges  bool   `json:"accepts_changes"`
}

type ValidateDTO struct {
	Valid      bool                   `json:"valid"`
	Actor      *actor.Actor           `json:"actor"`
	References []actor.Reference      `json:"references"`
	Policy     PolicySummary          `json:"policy"`
	Progress   progress.ActorProgress `json:"progress"`
	ExpiresAt  time.Time              `json:"token_expires_at"`
}

type ShareLinkDTO struct {
	ActorID             string     `json:"actor_id"`
	Kind                actor.Kind `json:"kind"`
	Name                string     `json:"name"`
	Email               string     `json:"email,omitempty"`
	URL                 string     `json:"url,omitempty"`
	TokenValid          bool       `json:"token_valid"`
	TokenExpiry         *time.Time `json:"token_expiry,omitempty"`
	InformationComplete bool       `json:"information_complete"`
	LastSeenAt          *time.Time `json:"last_seen_at,omitempty"`
}
