package policy

import "time"

type Verdict string

const (
	VerdictPending  Verdict = "PENDING"
	VerdictApproved Verdict = "APPROVED"
	VerdictRejected Verdict = "REJECTED"
)

type LandlordDecision string

const (
	DecisionProceed LandlordDecision = "PROCEED"
	DecisionReject  LandlordDecision = "REJECT"
)

func (d LandlordDecision) Valid() bool { return d == DecisionProceed || d == DecisionReject }

// Investigation holds the staff verdict over the whole file and the
// owner's override of an adverse verdict. One row per policy.
type Investigation struct {
	ID              uint64     `gorm:"primaryKey;column:id" json:"-"`
	PolicyID        uint64     `gorm:"column:policy_id;not null;uniqueIndex:ux_investigations_policy" json:"-"`
	Verdict         Verdict    `gorm:"column:verdict;size:16;not null;default:'PENDING'" json:"verdict"`
	RejectionReason *string    `gorm:"column:rejection_reason;type:text" json:"rejection_reason,omitempty"`
	DecidedBy       string     `gorm:"column:decided_by;size:64" json:"decided_by,omitempty"`
	DecidedAt       *time.Time `gorm:"column:decided_at" json:"decided_at,omitempty"`

	LandlordDecision  *LandlordDecision `gorm:"column:landlord_decision;size:16" json:"landlord_decision,omitempty"`
	LandlordNotes     *string           `gorm:"column:landlord_notes;type:text" json:"landlord_notes,omitempty"`
	LandlordDecidedBy string            `gorm:"column:landlord_decided_by;size:64" json:"landlord_decided_by,omitempty"`
	LandlordDecidedAt *time.Time        `gorm:"column:landlord_decided_at" json:"landlord_decided_at,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Investigation) TableName() string { return "investigations" }
