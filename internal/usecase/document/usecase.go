// Package document is the custody side of actor evidence: uploads bound to
// exactly one actor, signed retrieval and staff review.
package document

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"leaseprotect/internal/auth"
	"leaseprotect/internal/authz"
	"leaseprotect/internal/domain/activity"
	"leaseprotect/internal/domain/actor"
	domain "leaseprotect/internal/domain/document"
	"leaseprotect/internal/domain/policy"
	"leaseprotect/internal/domain/progress"
	"leaseprotect/internal/domain/uow"
	"leaseprotect/internal/observability/metrics"
	"leaseprotect/internal/observability/tracing"
	"leaseprotect/internal/usecase/workflow"
	"leaseprotect/pkg/id"

	"go.opentelemetry.io/otel/attribute"
)

type Usecase struct {
	repos   uow.Repos
	tx      uow.UnitOfWork
	store   domain.ObjectStore
	machine *workflow.Machine
	authz   authz.Checker
	opts    Options
	log     *slog.Logger
}

func NewUsecase(repos uow.Repos, tx uow.UnitOfWork, store domain.ObjectStore, m *workflow.Machine, az authz.Checker, opts Options, log *slog.Logger) *Usecase {
	return &Usecase{repos: repos, tx: tx, store: store, machine: m, authz: az, opts: opts, log: log}
}

// Upload stores a file for the authenticated actor. Bytes go to the object
// store first and the record second, with no transaction open during the
// transfer; a crash in between leaves an orphaned blob, never a record
// without bytes.
func (u *Usecase) Upload(ctx context.Context, who auth.ActorToken, in UploadInput, ip string) (*domain.Document, error) {
	a, err := workflow.ActorForToken(ctx, u.repos.Actors, who, u.machine.Now())
	if err != nil {
		return nil, err
	}
	p, err := u.repos.Policies.GetByID(ctx, a.PolicyID)
	if err != nil {
		return nil, err
	}
	if !p.Status.AcceptsActorChanges() {
		return nil, policy.ErrNotAcceptingChanges
	}
	by := activity.Performer{Kind: activity.PerformedByActor, ID: a.ActorID, IP: ip}
	return u.upload(ctx, p, a, in, u.opts.MaxActorBytes, "actor", by, func(r uow.Repos, now time.Time) error {
		_, err := workflow.ActorForToken(ctx, r.Actors, who, now)
		return err
	})
}

// StaffUpload is the staff-assisted path with the higher size ceiling.
func (u *Usecase) StaffUpload(ctx context.Context, s auth.Session, policyID, actorID string, in UploadInput, ip string) (*domain.Document, error) {
	p, err := workflow.PolicyForStaff(ctx, u.repos.Policies, u.authz, s, policyID, authz.ActionUpdate)
	if err != nil {
		return nil, err
	}
	if p.Status.Terminal() {
		return nil, policy.ErrTerminal
	}
	a, err := workflow.ActorOfPolicy(ctx, u.repos.Actors, p, "", actorID)
	if err != nil {
		return nil, err
	}
	by := activity.Performer{Kind: activity.PerformedByStaff, ID: s.UserID, IP: ip}
	return u.upload(ctx, p, a, in, u.opts.MaxStaffBytes, "staff", by, nil)
}

func (u *Usecase) upload(ctx context.Context, p *policy.Policy, a *actor.Actor, in UploadInput, limit int64, uploader string,
	by activity.Performer, recheck func(r uow.Repos, now time.Time) error) (*domain.Document, error) {
	ctx, span := tracing.StartSpan(ctx, "document.upload",
		attribute.String("actor_id", a.ActorID), attribute.String("uploader", uploader))
	defer span.End()

	cat := domain.Category(strings.ToUpper(strings.TrimSpace(in.Category)))
	body, mime, err := check(cat, in, limit)
	if err != nil {
		metrics.ObserveUpload(uploader, "rejected", in.Size)
		return nil, err
	}

	now := u.machine.Now()
	docID := id.NewID32()
	key := domain.StorageKey(p.PolicyNumber, string(a.Kind), a.ActorID, cat, now, docID, in.FileName)
	if err := u.store.Put(ctx, key, body, in.Size, mime); err != nil {
		metrics.ObserveUpload(uploader, "storage_error", in.Size)
		u.log.Error("document bytes not stored",
			slog.String("policy_id", p.PolicyID), slog.String("actor_id", a.ActorID),
			slog.String("storage_key", key), slog.String("error", err.Error()))
		return nil, domain.ErrStorage.Wrap(err)
	}

	doc := &domain.Document{
		DocumentID:   docID,
		ActorID:      a.ID,
		Category:     cat,
		OriginalName: in.FileName,
		StorageKey:   key,
		FileSize:     in.Size,
		MimeType:     mime,
		UploadedBy:   by.Kind.Prefix() + by.ID,
	}
	err = u.tx.WithinPolicyTx(ctx, p.ID, func(r uow.Repos, locked *policy.Policy) error {
		if recheck != nil {
			if !locked.Status.AcceptsActorChanges() {
				return policy.ErrNotAcceptingChanges
			}
			if err := recheck(r, now); err != nil {
				return err
			}
		}
		if err := r.Documents.Create(ctx, doc); err != nil {
			return err
		}
		entry := activity.New(p.ID, "document_uploaded", "Documento cargado", by, map[string]any{
			"document_id": doc.DocumentID, "actor_id": a.ActorID, "category": string(cat), "size": in.Size,
		})
		entry.CreatedAt = now
		return r.Activity.Append(ctx, entry)
	})
	if err != nil {
		if derr := u.store.Delete(context.WithoutCancel(ctx), key); derr != nil {
			u.log.Warn("orphaned upload", slog.String("storage_key", key), slog.String("error", derr.Error()))
		}
		metrics.ObserveUpload(uploader, "failed", in.Size)
		return nil, err
	}
	metrics.ObserveUpload(uploader, "ok", in.Size)
	return doc, nil
}

// check validates category, size and type. The type must be on the
// allow-list both as declared and as sniffed from the first bytes; the
// sniffed one is stored.
func check(cat domain.Category, in UploadInput, limit int64) (io.Reader, string, error) {
	if !cat.Valid() {
		return nil, "", domain.ErrInvalidCategory
	}
	if in.Size <= 0 || in.Body == nil {
		return nil, "", domain.ErrEmptyFile
	}
	if limit > 0 && in.Size > limit {
		return nil, "", domain.ErrTooLarge.
			WithMessage(fmt.Sprintf("el archivo excede el tamaño máximo de %d bytes", limit)).
			WithFields(domain.LimitField(limit))
	}
	if !domain.AllowedMIME(in.MimeType) {
		return nil, "", domain.ErrMimeNotAllowed
	}
	br := bufio.NewReaderSize(io.LimitReader(in.Body, in.Size), 512)
	head, _ := br.Peek(512)
	sniffed := domain.NormalizeMIME(http.DetectContentType(head))
	if !domain.AllowedMIME(sniffed) {
		return nil, "", domain.ErrMimeNotAllowed.WithMessage("el contenido del archivo no corresponde a un PDF, PNG, JPEG o WEBP")
	}
	return br, sniffed, nil
}

// List returns the actor's own documents plus what is still missing.
func (u *Usecase) List(ctx context.Context, who auth.ActorToken) (*ListDTO, error) {
	a, err := workflow.ActorForToken(ctx, u.repos.Actors, who, u.machine.Now())
	if err != nil {
		return nil, err
	}
	docs, err := u.repos.Documents.ListByActor(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	ap := progress.ForActor(a, docs)
	if docs == nil {
		docs = []domain.Document{}
	}
	return &ListDTO{
		Documents: docs,
		Required:  progress.RequiredDocuments(a.Kind, a.IsCompany),
		Missing:   ap.MissingDocuments,
	}, nil
}

// Delete removes one of the actor's own documents. The record goes first;
// the blob is removed after commit.
func (u *Usecase) Delete(ctx context.Context, who auth.ActorToken, documentID, ip string) error {
	a0, err := workflow.ActorForToken(ctx, u.repos.Actors, who, u.machine.Now())
	if err != nil {
		return err
	}
	var key string
	err = u.tx.WithinPolicyTx(ctx, a0.PolicyID, func(r uow.Repos, p *policy.Policy) error {
		now := u.machine.Now()
		a, err := workflow.ActorForToken(ctx, r.Actors, who, now)
		if err != nil {
			return err
		}
		if !p.Status.AcceptsActorChanges() {
			return policy.ErrNotAcceptingChanges
		}
		d, err := owned(ctx, r.Documents, a, documentID)
		if err != nil {
			return err
		}
		if d.VerifiedAt != nil {
			return domain.ErrVerified
		}
		if err := r.Documents.Delete(ctx, d.ID); err != nil {
			return err
		}
		key = d.StorageKey
		entry := activity.New(p.ID, "document_deleted", "Documento eliminado",
			activity.Performer{Kind: activity.PerformedByActor, ID: a.ActorID, IP: ip},
			map[string]any{"document_id": d.DocumentID, "category": string(d.Category)})
		entry.CreatedAt = now
		return r.Activity.Append(ctx, entry)
	})
	if err != nil {
		return err
	}
	if err := u.store.Delete(ctx, key); err != nil {
		u.log.Warn("document blob not removed", slog.String("storage_key", key), slog.String("error", err.Error()))
	}
	return nil
}

// owned loads a document and hides it unless it belongs to a.
func owned(ctx context.Context, docs domain.Repository, a *actor.Actor, documentID string) (*domain.Document, error) {
	d, err := docs.GetByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if d.ActorID != a.ID {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

// DownloadURL signs a short-lived URL for the owning actor. Another
// actor's document reads as not found.
func (u *Usecase) DownloadURL(ctx context.Context, who auth.ActorToken, documentID, ip string) (*DownloadDTO, error) {
	a, err := workflow.ActorForToken(ctx, u.repos.Actors, who, u.machine.Now())
	if err != nil {
		return nil, err
	}
	d, err := owned(ctx, u.repos.Documents, a, documentID)
	if err != nil {
		return nil, err
	}
	by := activity.Performer{Kind: activity.PerformedByActor, ID: a.ActorID, IP: ip}
	return u.sign(ctx, a.PolicyID, d, u.opts.ActorURLTTL, by)
}

// StaffDownloadURL signs a longer-lived URL for staff with read access to
// the owning policy.
func (u *Usecase) StaffDownloadURL(ctx context.Context, s auth.Session, policyID, documentID, ip string) (*DownloadDTO, error) {
	p, err := workflow.PolicyForStaff(ctx, u.repos.Policies, u.authz, s, policyID, authz.ActionRead)
	if err != nil {
		return nil, err
	}
	d, err := u.policyDocument(ctx, u.repos, p, documentID)
	if err != nil {
		return nil, err
	}
	by := activity.Performer{Kind: activity.PerformedByStaff, ID: s.UserID, IP: ip}
	return u.sign(ctx, p.ID, d, u.opts.StaffURLTTL, by)
}

func (u *Usecase) policyDocument(ctx context.Context, r uow.Repos, p *policy.Policy, documentID string) (*domain.Document, error) {
	d, err := r.Documents.GetByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	owner, err := r.Actors.GetByID(ctx, d.ActorID)
	if err != nil || owner.PolicyID != p.ID {
		if err != nil && !errors.Is(err, actor.ErrNotFound) {
			return nil, err
		}
		return nil, domain.ErrNotFound
	}
	return d, nil
}

// sign issues the URL and logs exactly one activity entry for it.
func (u *Usecase) sign(ctx context.Context, policyPK uint64, d *domain.Document, ttl time.Duration, by activity.Performer) (*DownloadDTO, error) {
	url, err := u.store.SignedURL(ctx, d.StorageKey, ttl, d.OriginalName)
	if err != nil {
		u.log.Error("signed url failed", slog.String("storage_key", d.StorageKey), slog.String("error", err.Error()))
		return nil, domain.ErrStorage.Wrap(err)
	}
	entry := activity.New(policyPK, "document_downloaded", "Descarga de documento", by, map[string]any{
		"document_id": d.DocumentID, "category": string(d.Category), "expires_in": int(ttl.Seconds()),
	})
	entry.CreatedAt = u.machine.Now()
	if err := u.repos.Activity.Append(ctx, entry); err != nil {
		return nil, err
	}
	return &DownloadDTO{DownloadURL: url, FileName: d.OriginalName, ExpiresIn: int(ttl.Seconds())}, nil
}

// Review stamps a document verified or records why it was rejected.
func (u *Usecase) Review(ctx context.Context, s auth.Session, policyID, documentID string, in ReviewInput, ip string) (*domain.Document, error) {
	reason := strings.TrimSpace(in.Reason)
	switch in.Action {
	case "approve":
	case "reject":
		if reason == "" {
			return nil, domain.ErrReviewReason
		}
	default:
		return nil, actor.ErrInvalidAction.WithMessage("acción inválida; use approve o reject")
	}
	p, err := workflow.PolicyForStaff(ctx, u.repos.Policies, u.authz, s, policyID, authz.ActionVerify)
	if err != nil {
		return nil, err
	}

	var out *domain.Document
	err = u.tx.WithinPolicyTx(ctx, p.ID, func(r uow.Repos, p *policy.Policy) error {
		d, err := u.policyDocument(ctx, r, p, documentID)
		if err != nil {
			return err
		}
		now := u.machine.Now()
		var rp *string
		action, desc := "document_verified", "Documento verificado"
		if in.Action == "reject" {
			rp = &reason
			action, desc = "document_rejected", "Documento rechazado"
		}
		if err := r.Documents.MarkReviewed(ctx, d.ID, s.UserID, now, rp); err != nil {
			return err
		}
		details := map[string]any{"document_id": d.DocumentID, "category": string(d.Category)}
		if rp != nil {
			details["reason"] = reason
		}
		entry := activity.New(p.ID, action, desc, activity.Performer{Kind: activity.PerformedByStaff, ID: s.UserID, IP: ip}, details)
		entry.CreatedAt = now
		if err := r.Activity.Append(ctx, entry); err != nil {
			return err
		}
		out, err = r.Documents.GetByDocumentID(ctx, documentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
