package policy

import "time"

// Contract is a staff-uploaded contract file. Only one row per policy has
// IsCurrent=true; re-uploads bump Version.
type Contract struct {
	ID         uint64     `gorm:"primaryKey;column:id" json:"-"`
	ContractID string     `gorm:"column:contract_id;size:32;not null;uniqueIndex:ux_contracts_contract_id" json:"contract_id"`
	PolicyID   uint64     `gorm:"column:policy_id;not null;index" json:"-"`
	Version    int        `gorm:"column:version;not null" json:"version"`
	IsCurrent  bool       `gorm:"column:is_current;not null;default:false" json:"is_current"`
	FileName   string     `gorm:"column:file_name;size:255" json:"file_name"`
	StorageKey string     `gorm:"column:storage_key;size:512;not null;uniqueIndex:ux_contracts_storage_key" json:"-"`
	FileSize   int64      `gorm:"column:file_size" json:"file_size"`
	MimeType   string     `gorm:"column:mime_type;size:100" json:"mime_type"`
	UploadedBy string     `gorm:"column:uploaded_by;size:64" json:"uploaded_by"`
	SignedAt   *time.Time `gorm:"column:signed_at" json:"signed_at,omitempty"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Contract) TableName() string { return "contracts" }
