package document

import (
	"io"
	"time"

	domain "leaseprotect/internal/domain/document"
)

// Options carries the upload ceilings and signed URL lifetimes.
type Options struct {
	MaxActorBytes int64
	MaxStaffBytes int64
	ActorURLTTL   time.Duration
	StaffURLTTL   time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxActorBytes: 10 << 20,
		MaxStaffBytes: 50 << 20,
		ActorURLTTL:   30 * time.Second,
		StaffURLTTL:   5 * time.Minute,
	}
}

type UploadInput struct {
	Category string
	FileName string
	MimeType string
	Size     int64
	Body     io.Reader
}

type DownloadDTO struct {
	DownloadURL string `json:"downloadUrl"`
	FileName    string `json:"fileName"`
	ExpiresIn   int    `json:"expiresIn"`
}

type ReviewInput struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
	Reason string `json:"reason"`
}

type ListDTO struct {
	Documents []domain.Document `json:"documents"`
	Required  []domain.Category `json:"required"`
	Missing   []domain.Category `json:"missing"`
}
