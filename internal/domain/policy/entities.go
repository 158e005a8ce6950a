package policy

import (
	"time"
)

type GuarantorType string

const (
	GuarantorJointObligor GuarantorType = "JOINT_OBLIGOR"
	GuarantorAval         GuarantorType = "AVAL"
	GuarantorBoth         GuarantorType = "BOTH"
)

func (g GuarantorType) Valid() bool {
	switch g {
	case GuarantorJointObligor, GuarantorAval, GuarantorBoth:
		return true
	}
	return false
}

type CancellationReason string

const (
	CancelClientDesisted          CancellationReason = "CLIENT_DESISTED"
	CancelInvestigationFailed     CancellationReason = "INVESTIGATION_FAILED"
	CancelDocumentationIncomplete CancellationReason = "DOCUMENTATION_INCOMPLETE"
	CancelDuplicatePolicy         CancellationReason = "DUPLICATE_POLICY"
	CancelPaymentFailed           CancellationReason = "PAYMENT_FAILED"
	CancelOther                   CancellationReason = "OTHER"
)

func (r CancellationReason) Valid() bool {
	switch r {
	case CancelClientDesisted, CancelInvestigationFailed, CancelDocumentationIncomplete,
		CancelDuplicatePolicy, CancelPaymentFailed, CancelOther:
		return true
	}
	return false
}

// Policy is the root aggregate. Status changes go through the workflow
// machine and are persisted with a compare-and-swap on (Status, Version).
type Policy struct {
	ID            uint64        `gorm:"primaryKey;column:id" json:"-"`
	PolicyID      string        `gorm:"column:policy_id;size:32;not null;uniqueIndex:ux_policies_policy_id" json:"policy_id"`
	PolicyNumber  string        `gorm:"column:policy_number;size:32;not null;uniqueIndex:ux_policies_number" json:"policy_number"`
	Status        Status        `gorm:"column:status;size:32;not null;index" json:"status"`
	GuarantorType GuarantorType `gorm:"column:guarantor_type;size:20;not null" json:"guarantor_type"`

	PropertyAddress string  `gorm:"column:property_address;type:text" json:"property_address"`
	PropertyType    string  `gorm:"column:property_type;size:32" json:"property_type"`
	MonthlyRent     float64 `gorm:"column:monthly_rent;type:decimal(14,2)" json:"monthly_rent"`
	ContractLength  int     `gorm:"column:contract_length_months;not null;default:12" json:"contract_length_months"`

	// CreatedBy is the owning staff/broker user; authorization metadata only.
	CreatedBy string `gorm:"column:created_by;size:64;not null;index" json:"created_by"`

	ReviewNotes         *string             `gorm:"column:review_notes;type:text" json:"review_notes,omitempty"`
	ReviewReason        *string             `gorm:"column:review_reason;type:text" json:"review_reason,omitempty"`
	CancellationReason  *CancellationReason `gorm:"column:cancellation_reason;size:32" json:"cancellation_reason,omitempty"`
	CancellationComment *string             `gorm:"column:cancellation_comment;type:text" json:"cancellation_comment,omitempty"`

	SubmittedAt      *time.Time `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	ApprovedAt       *time.Time `gorm:"column:approved_at" json:"approved_at,omitempty"`
	ContractSignedAt *time.Time `gorm:"column:contract_signed_at" json:"contract_signed_at,omitempty"`
	PolicyExpiresAt  *time.Time `gorm:"column:policy_expires_at" json:"policy_expires_at,omitempty"`
	ActivatedAt      *time.Time `gorm:"column:activated_at" json:"activated_at,omitempty"`
	CancelledAt      *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`

	StatusUpdatedAt time.Time `gorm:"column:status_updated_at" json:"status_updated_at"`
	Version         uint64    `gorm:"column:version;not null;default:0" json:"-"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Policy) TableName() string { return "policies" }

// ExpiryFrom returns signedAt shifted by the contract length in months.
func (p *Policy) ExpiryFrom(signedAt time.Time) time.Time {
	months := p.ContractLength
	if months <= 0 {
		months = 12
	}
	return signedAt.AddDate(0, months, 0)
}
