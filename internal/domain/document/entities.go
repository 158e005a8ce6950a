package document

import "time"

type Category string

const (
	CategoryIdentification         Category = "IDENTIFICATION"
	CategoryProofOfAddress         Category = "PROOF_OF_ADDRESS"
	CategoryIncomeProof            Category = "INCOME_PROOF"
	CategoryBankStatement          Category = "BANK_STATEMENT"
	CategoryPropertyDeed           Category = "PROPERTY_DEED"
	CategoryPropertyTaxReceipt     Category = "PROPERTY_TAX_RECEIPT"
	CategoryConstitutiveAct        Category = "CONSTITUTIVE_ACT"
	CategoryTaxStatusCertificate   Category = "TAX_STATUS_CERTIFICATE"
	CategoryLegalRepIdentification Category = "LEGAL_REP_IDENTIFICATION"
	CategoryLegalPowers            Category = "LEGAL_POWERS"
	CategoryOther                  Category = "OTHER"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryIdentification, CategoryProofOfAddress, CategoryIncomeProof, CategoryBankStatement,
		CategoryPropertyDeed, CategoryPropertyTaxReceipt, CategoryConstitutiveAct, CategoryTaxStatusCertificate,
		CategoryLegalRepIdentification, CategoryLegalPowers, CategoryOther:
		return true
	}
	return false
}

// Document is evidence bound to exactly one actor. StorageKey and ActorID
// are written once at creation.
type Document struct {
	ID           uint64   `gorm:"primaryKey;column:id" json:"-"`
	DocumentID   string   `gorm:"column:document_id;size:32;not null;uniqueIndex:ux_documents_document_id" json:"document_id"`
	ActorID      uint64   `gorm:"column:actor_id;not null;index;<-:create" json:"-"`
	Category     Category `gorm:"column:category;size:32;not null" json:"category"`
	OriginalName string   `gorm:"column:original_name;size:255;not null" json:"file_name"`
	StorageKey   string   `gorm:"column:storage_key;size:512;not null;uniqueIndex:ux_documents_storage_key;<-:create" json:"-"`
	FileSize     int64    `gorm:"column:file_size;not null" json:"file_size"`
	MimeType     string   `gorm:"column:mime_type;size:100;not null" json:"mime_type"`
	// UploadedBy is "actor:<actorId>" or "staff:<userId>".
	UploadedBy string `gorm:"column:uploaded_by;size:80;not null" json:"uploaded_by"`

	VerifiedAt      *time.Time `gorm:"column:verified_at" json:"verified_at,omitempty"`
	VerifiedBy      string     `gorm:"column:verified_by;size:64" json:"verified_by,omitempty"`
	RejectionReason *string    `gorm:"column:rejection_reason;type:text" json:"rejection_reason,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"uploaded_at"`
}

func (Document) TableName() string { return "documents" }
