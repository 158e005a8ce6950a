package actor

import "strings"

type Kind string

const (
	KindLandlord     Kind = "landlord"
	KindTenant       Kind = "tenant"
	KindJointObligor Kind = "joint-obligor"
	KindAval         Kind = "aval"
)

var Kinds = []Kind{KindLandlord, KindTenant, KindJointObligor, KindAval}

func (k Kind) Valid() bool {
	switch k {
	case KindLandlord, KindTenant, KindJointObligor, KindAval:
		return true
	}
	return false
}

// ParseKind accepts the URL form ("joint-obligor") and the enum form
// ("JOINT_OBLIGOR").
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	return k, k.Valid()
}

// Multiple reports whether a policy may hold more than one actor of kind k.
func (k Kind) Multiple() bool { return k != KindTenant }

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationApproved VerificationStatus = "APPROVED"
	VerificationRejected VerificationStatus = "REJECTED"
)
