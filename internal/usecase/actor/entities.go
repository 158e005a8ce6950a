package actor

import (
	domain "leaseprotect/internal/domain/actor"
	"leaseprotect/internal/domain/progress"
)

// SubmitInput is the whole self-service form. Identity, contact and detail
// fields replace the stored ones; References, when non-nil, replace the
// stored list. Complete asks to mark the information complete.
type SubmitInput struct {
	IsCompany bool `json:"is_company"`

	FirstName        string `json:"first_name"`
	MiddleName       string `json:"middle_name"`
	PaternalLastName string `json:"paternal_last_name"`
	MaternalLastName string `json:"maternal_last_name"`

	CompanyName  string `json:"company_name"`
	LegalRepName string `json:"legal_rep_name"`
	RFC          string `json:"rfc" validate:"omitempty,rfc"`

	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"omitempty,phone10"`
	Address string `json:"address"`

	Details    domain.Details   `json:"details"`
	References []ReferenceInput `json:"references" validate:"omitempty,dive"`

	Complete bool `json:"complete"`
}

type ReferenceInput struct {
	Type         domain.ReferenceType `json:"type" validate:"required,oneof=PERSONAL COMMERCIAL"`
	Name         string               `json:"name" validate:"required"`
	Phone        string               `json:"phone" validate:"required,phone10"`
	Email        string               `json:"email" validate:"omitempty,email"`
	Relationship string               `json:"relationship"`
	CompanyName  string               `json:"company_name"`
}

type SubmitResult struct {
	Success        bool                   `json:"success"`
	Actor          *domain.Actor          `json:"actor"`
	References     []domain.Reference     `json:"references"`
	ActorsComplete bool                   `json:"actorsComplete"`
	PolicyStatus   string                 `json:"policy_status"`
	Progress       progress.ActorProgress `json:"progress"`
}
