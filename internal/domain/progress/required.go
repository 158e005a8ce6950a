// Package progress derives readiness from actor data. Everything here is a
// pure function of its arguments.
package progress

import (
	"leaseprotect/internal/domain/actor"
	"leaseprotect/internal/domain/document"
	"leaseprotect/internal/domain/policy"
)

// Requirement says how many actors of Kind a policy needs. Max 0 means
// unbounded. A Requirement with Min 0 is not a required collection.
type Requirement struct {
	Kind actor.Kind
	Min  int
	Max  int
}

func (r Requirement) Required() bool { return r.Min > 0 }

// Required is the single source of truth for which actor collections a
// guarantor configuration needs.
func Required(gt policy.GuarantorType) []Requirement {
	reqs := []Requirement{
		{Kind: actor.KindLandlord, Min: 1},
		{Kind: actor.KindTenant, Min: 1, Max: 1},
		{Kind: actor.KindJointObligor},
		{Kind: actor.KindAval},
	}
	switch gt {
	case policy.GuarantorJointObligor:
		reqs[2].Min = 1
	case policy.GuarantorAval:
		reqs[3].Min = 1
	case policy.GuarantorBoth:
		reqs[2].Min = 1
		reqs[3].Min = 1
	}
	return reqs
}

// IsRequiredKind reports whether kind is a required collection under gt.
func IsRequiredKind(gt policy.GuarantorType, kind actor.Kind) bool {
	for _, r := range Required(gt) {
		if r.Kind == kind {
			return r.Required()
		}
	}
	return false
}

var requiredDocs = map[actor.Kind]map[bool][]document.Category{
	actor.KindTenant: {
		false: {document.CategoryIdentification, document.CategoryProofOfAddress, document.CategoryIncomeProof},
		true: {document.CategoryConstitutiveAct, document.CategoryTaxStatusCertificate,
			document.CategoryLegalRepIdentification, document.CategoryLegalPowers, document.CategoryProofOfAddress},
	},
	actor.KindLandlord: {
		false: {document.CategoryIdentification, document.CategoryPropertyDeed, document.CategoryBankStatement},
		true: {document.CategoryConstitutiveAct, document.CategoryLegalRepIdentification,
			document.CategoryLegalPowers, document.CategoryPropertyDeed, document.CategoryBankStatement},
	},
	actor.KindJointObligor: {
		false: {document.CategoryIdentification, document.CategoryProofOfAddress, document.CategoryIncomeProof},
		true: {document.CategoryConstitutiveAct, document.CategoryLegalRepIdentification,
			document.CategoryTaxStatusCertificate, document.CategoryIncomeProof},
	},
	actor.KindAval: {
		false: {document.CategoryIdentification, document.CategoryProofOfAddress,
			document.CategoryPropertyDeed, document.CategoryPropertyTaxReceipt},
		true: {document.CategoryConstitutiveAct, document.CategoryLegalRepIdentification,
			document.CategoryPropertyDeed, document.CategoryPropertyTaxReceipt},
	},
}

// RequiredDocuments lists the categories an actor of kind must upload.
func RequiredDocuments(kind actor.Kind, isCompany bool) []document.Category {
	return append([]document.Category(nil), requiredDocs[kind][isCompany]...)
}

type field struct {
	name    string
	present func(a *actor.Actor) bool
}

func str(get func(a *actor.Actor) string) func(a *actor.Actor) bool {
	return func(a *actor.Actor) bool { return get(a) != "" }
}

var (
	personFields = []field{
		{"first_name", str(func(a *actor.Actor) string { return a.FirstName })},
		{"paternal_last_name", str(func(a *actor.Actor) string { return a.PaternalLastName })},
	}
	companyFields = []field{
		{"company_name", str(func(a *actor.Actor) string { return a.CompanyName })},
		{"legal_rep_name", str(func(a *actor.Actor) string { return a.LegalRepName })},
		{"rfc", str(func(a *actor.Actor) string { return a.RFC })},
	}
	contactFields = []field{
		{"email", str(func(a *actor.Actor) string { return a.Email })},
		{"phone", str(func(a *actor.Actor) string { return a.Phone })},
		{"address", str(func(a *actor.Actor) string { return a.Address })},
	}
	kindFields = map[actor.Kind][]field{
		actor.KindTenant: {
			{"occupation", str(func(a *actor.Actor) string { return a.Details.Occupation })},
			{"employer", str(func(a *actor.Actor) string { return a.Details.Employer })},
			{"monthly_income", func(a *actor.Actor) bool { return a.Details.MonthlyIncome > 0 }},
		},
		actor.KindLandlord: {
			{"bank_name", str(func(a *actor.Actor) string { return a.Details.BankName })},
			{"clabe", str(func(a *actor.Actor) string { return a.Details.Clabe })},
		},
		actor.KindJointObligor: {
			{"relationship", str(func(a *actor.Actor) string { return a.Details.Relationship })},
			{"monthly_income", func(a *actor.Actor) bool { return a.Details.MonthlyIncome > 0 }},
		},
		actor.KindAval: {
			{"relationship", str(func(a *actor.Actor) string { return a.Details.Relationship })},
			{"guarantee_property_address", str(func(a *actor.Actor) string { return a.Details.GuaranteePropertyAddress })},
			{"guarantee_property_value", func(a *actor.Actor) bool { return a.Details.GuaranteePropertyValue > 0 }},
		},
	}
)

func requiredFields(a *actor.Actor) []field {
	out := make([]field, 0, 10)
	if a.IsCompany {
		out = append(out, companyFields...)
	} else {
		out = append(out, personFields...)
	}
	out = append(out, contactFields...)
	return append(out, kindFields[a.Kind]...)
}

// MissingFields returns the JSON names of required fields a has not filled.
func MissingFields(a *actor.Actor) []string {
	var missing []string
	for _, f := range requiredFields(a) {
		if !f.present(a) {
			missing = append(missing, f.name)
		}
	}
	return missing
}
