package policy

import (
	"io"

	"leaseprotect/internal/domain/activity"
	"leaseprotect/internal/domain/actor"
	"leaseprotect/internal/domain/document"
	domain "leaseprotect/internal/domain/policy"
	"leaseprotect/internal/domain/progress"
)

// ActorInput seeds an actor at creation. Staff usually only know the
// contact data; the party fills in the rest through its link.
type ActorInput struct {
	IsPrimary        bool   `json:"is_primary"`
	IsCompany        bool   `json:"is_company"`
	FirstName        string `json:"first_name"`
	PaternalLastName string `json:"paternal_last_name"`
	MaternalLastName string `json:"maternal_last_name"`
	CompanyName      string `json:"company_name"`
	Email            string `json:"email" validate:"omitempty,email"`
	Phone            string `json:"phone" validate:"omitempty,phone10"`
}

type CreateInput struct {
	GuarantorType   string       `json:"guarantor_type" validate:"required"`
	PropertyAddress string       `json:"property_address" validate:"required"`
	PropertyType    string       `json:"property_type"`
	MonthlyRent     float64      `json:"monthly_rent" validate:"gte=0"`
	ContractLength  int          `json:"contract_length_months" validate:"gte=0,lte=120"`
	Landlords       []ActorInput `json:"landlords" validate:"dive"`
	Tenant          *ActorInput  `json:"tenant"`
	JointObligors   []ActorInput `json:"joint_obligors" validate:"dive"`
	Avals           []ActorInput `json:"avals" validate:"dive"`
}

type UpdateStatusInput struct {
	Status       string `json:"status" validate:"required"`
	ReviewNotes  string `json:"reviewNotes"`
	ReviewReason string `json:"reviewReason"`
	CancelReason string `json:"cancellationReason"`
	Comment      string `json:"cancellationComment"`
}

type VerdictInput struct {
	Verdict string `json:"verdict" validate:"required"`
	Reason  string `json:"reason"`
}

type OverrideInput struct {
	Decision string `json:"decision" validate:"required"`
	Notes    string `json:"notes"`
}

type CancelInput struct {
	Reason  string `json:"reason" validate:"required"`
	Comment string `json:"comment" validate:"required"`
}

// ActorView is an actor with its own evidence, as staff see it.
type ActorView struct {
	*actor.Actor
	Documents  []document.Document `json:"documents"`
	References []actor.Reference   `json:"references"`
}

type DetailDTO struct {
	Policy        *domain.Policy          `json:"policy"`
	Actors        []ActorView             `json:"actors"`
	Investigation *domain.Investigation   `json:"investigation"`
	Contract      *domain.Contract        `json:"contract,omitempty"`
	Progress      progress.PolicyProgress `json:"progress"`
}

type ActivityDTO struct {
	PolicyID string           `json:"policy_id"`
	Entries  []activity.Entry `json:"entries"`
}

type ContractUpload struct {
	FileName string
	MimeType string
	Size     int64
	Body     io.Reader
}

type ContractURLDTO struct {
	DownloadURL string `json:"downloadUrl"`
	FileName    string `json:"fileName"`
	Version     int    `json:"version"`
	ExpiresIn   int    `json:"expiresIn"`
}
