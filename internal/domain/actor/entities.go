package actor

import (
	"strings"
	"time"
)

// Actor is one external party of a policy. The four variants share this
// record; Kind discriminates them and Details carries the variant fields.
type Actor struct {
	ID       uint64 `gorm:"primaryKey;column:id" json:"-"`
	ActorID  string `gorm:"column:actor_id;size:32;not null;uniqueIndex:ux_actors_actor_id" json:"actor_id"`
	PolicyID uint64 `gorm:"column:policy_id;not null;index:ix_actors_policy_kind,priority:1" json:"-"`
	Kind     Kind   `gorm:"column:kind;size:20;not null;index:ix_actors_policy_kind,priority:2" json:"kind"`

	// IsPrimary is meaningful for landlords only.
	IsPrimary bool `gorm:"column:is_primary;not null;default:false" json:"is_primary"`
	IsCompany bool `gorm:"column:is_company;not null;default:false" json:"is_company"`

	FirstName        string `gorm:"column:first_name;size:100" json:"first_name,omitempty"`
	MiddleName       string `gorm:"column:middle_name;size:100" json:"middle_name,omitempty"`
	PaternalLastName string `gorm:"column:paternal_last_name;size:100" json:"paternal_last_name,omitempty"`
	MaternalLastName string `gorm:"column:maternal_last_name;size:100" json:"maternal_last_name,omitempty"`

	CompanyName  string `gorm:"column:company_name;size:200" json:"company_name,omitempty"`
	LegalRepName string `gorm:"column:legal_rep_name;size:200" json:"legal_rep_name,omitempty"`

	RFC     string `gorm:"column:rfc;size:13" json:"rfc,omitempty"`
	Email   string `gorm:"column:email;size:255" json:"email,omitempty"`
	Phone   string `gorm:"column:phone;size:20" json:"phone,omitempty"`
	Address string `gorm:"column:address;type:text" json:"address,omitempty"`

	Details Details `gorm:"column:details;serializer:json" json:"details"`

	AccessToken    *string    `gorm:"column:access_token;size:64;uniqueIndex:ux_actors_access_token" json:"-"`
	TokenExpiresAt *time.Time `gorm:"column:token_expires_at" json:"-"`
	LastSeenAt     *time.Time `gorm:"column:last_seen_at" json:"-"`

	InformationComplete bool       `gorm:"column:information_complete;not null;default:false" json:"information_complete"`
	CompletedAt         *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	VerificationStatus VerificationStatus `gorm:"column:verification_status;size:16;not null;default:'PENDING'" json:"verification_status"`
	RejectionReason    *string            `gorm:"column:rejection_reason;type:text" json:"rejection_reason,omitempty"`
	VerifiedBy         string             `gorm:"column:verified_by;size:64" json:"verified_by,omitempty"`
	VerifiedAt         *time.Time         `gorm:"column:verified_at" json:"verified_at,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Actor) TableName() string { return "actors" }

// Details holds the per-kind extension fields. Unused fields stay empty.
type Details struct {
	// tenant
	Occupation    string  `json:"occupation,omitempty"`
	Employer      string  `json:"employer,omitempty"`
	MonthlyIncome float64 `json:"monthly_income,omitempty"`

	// landlord
	BankName           string `json:"bank_name,omitempty"`
	Clabe              string `json:"clabe,omitempty"`
	PropertyDeedNumber string `json:"property_deed_number,omitempty"`

	// joint obligor and aval
	Relationship string `json:"relationship,omitempty"`

	// aval: real-estate guarantee
	GuaranteePropertyAddress string  `json:"guarantee_property_address,omitempty"`
	GuaranteePropertyValue   float64 `json:"guarantee_property_value,omitempty"`
}

// DisplayName returns the company name for companies and the joined
// person-name fields otherwise.
func (a *Actor) DisplayName() string {
	if a.IsCompany {
		return a.CompanyName
	}
	parts := make([]string, 0, 4)
	for _, p := range []string{a.FirstName, a.MiddleName, a.PaternalLastName, a.MaternalLastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// TokenValid reports whether the actor holds a token that is live at now.
func (a *Actor) TokenValid(now time.Time) bool {
	return a.AccessToken != nil && a.TokenExpiresAt != nil && now.Before(*a.TokenExpiresAt)
}

type ReferenceType string

const (
	ReferencePersonal   ReferenceType = "PERSONAL"
	ReferenceCommercial ReferenceType = "COMMERCIAL"
)

// Reference is replaced wholesale on every submission.
type Reference struct {
	ID           uint64        `gorm:"primaryKey;column:id" json:"-"`
	ActorID      uint64        `gorm:"column:actor_id;not null;index" json:"-"`
	Type         ReferenceType `gorm:"column:type;size:16;not null" json:"type"`
	Name         string        `gorm:"column:name;size:200;not null" json:"name"`
	Phone        string        `gorm:"column:phone;size:10;not null" json:"phone"`
	Email        string        `gorm:"column:email;size:255" json:"email,omitempty"`
	Relationship string        `gorm:"column:relationship;size:100" json:"relationship,omitempty"`
	CompanyName  string        `gorm:"column:company_name;size:200" json:"company_name,omitempty"`
	CreatedAt    time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Reference) TableName() string { return "actor_references" }

// SharePath is the self-service path an invitation points at. Empty when
// the actor holds no token.
func (a *Actor) SharePath() string {
	if a.AccessToken == nil {
		return ""
	}
	return "/actor/" + string(a.Kind) + "/" + *a.AccessToken
}
