package activity

import (
	"context"
	"time"
)

type PerformerKind string

const (
	PerformedByStaff  PerformerKind = "staff"
	PerformedByActor  PerformerKind = "actor"
	PerformedBySystem PerformerKind = "system"
)

// Prefix is the attribution prefix used in uploaded_by style columns.
func (k PerformerKind) Prefix() string { return string(k) + ":" }

// Entry is append-only: the repository exposes no update or delete.
type Entry struct {
	ID            uint64         `gorm:"primaryKey;column:id" json:"-"`
	EntryID       string         `gorm:"column:entry_id;size:36;not null;uniqueIndex:ux_activity_entry_id" json:"id"`
	PolicyID      uint64         `gorm:"column:policy_id;not null;index:ix_activity_policy_created,priority:1" json:"-"`
	Action        string         `gorm:"column:action;size:64;not null" json:"action"`
	Description   string         `gorm:"column:description;type:text" json:"description,omitempty"`
	Details       map[string]any `gorm:"column:details;serializer:json" json:"details,omitempty"`
	PerformedBy   string         `gorm:"column:performed_by;size:80" json:"performed_by"`
	PerformerKind PerformerKind  `gorm:"column:performer_kind;size:10;not null" json:"performer_kind"`
	IPAddress     string         `gorm:"column:ip_address;size:64" json:"ip_address,omitempty"`
	CreatedAt     time.Time      `gorm:"column:created_at;index:ix_activity_policy_created,priority:2" json:"created_at"`
}

func (Entry) TableName() string { return "policy_activities" }

type Repository interface {
	Append(ctx context.Context, e *Entry) error
	// ListByPolicy returns entries oldest first.
	ListByPolicy(ctx context.Context, policyPK uint64, limit int) ([]Entry, error)
}

// Performer attributes an entry. ID is empty for system entries.
type Performer struct {
	Kind PerformerKind
	ID   string
	IP   string
}

func System() Performer { return Performer{Kind: PerformedBySystem, ID: "system"} }

// New builds an entry for policyPK. Details may be nil.
func New(policyPK uint64, action, description string, by Performer, details map[string]any) *Entry {
	return &Entry{
		PolicyID:      policyPK,
		Action:        action,
		Description:   description,
		Details:       details,
		PerformedBy:   by.ID,
		PerformerKind: by.Kind,
		IPAddress:     by.IP,
	}
}
