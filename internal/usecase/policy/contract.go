package policy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"leaseprotect/internal/auth"
	"leaseprotect/internal/authz"
	"leaseprotect/internal/domain/activity"
	"leaseprotect/internal/domain/document"
	"leaseprotect/internal/domain/notification"
	domain "leaseprotect/internal/domain/policy"
	"leaseprotect/internal/domain/uow"
	"leaseprotect/internal/observability/tracing"
	"leaseprotect/internal/usecase/workflow"
	"leaseprotect/pkg/id"

	"go.opentelemetry.io/otel/attribute"
)

const contractMIME = "application/pdf"

var errContractNotPDF = document.ErrMimeNotAllowed.WithMessage("el contrato debe ser un archivo PDF")

func acceptsContract(s domain.Status) bool {
	return s == domain.StatusContractPending || s == domain.StatusContractUploaded
}

// UploadContract stores a new contract version and makes it the current
// one. The first upload moves CONTRACT_PENDING to CONTRACT_UPLOADED;
// later ones replace the file until the contract is signed.
func (u *Usecase) UploadContract(ctx context.Context, s auth.Session, policyID string, in ContractUpload, ip string) (*domain.Contract, error) {
	p, err := workflow.PolicyForStaff(ctx, u.repos.Policies, u.authz, s, policyID, authz.ActionContract)
	if err != nil {
		return nil, err
	}
	if !acceptsContract(p.Status) {
		return nil, domain.ErrInvalidTransition.WithMessage(
			fmt.Sprintf("no se puede cargar un contrato: la póliza está en estado %s", p.Status))
	}
	ctx, span := tracing.StartSpan(ctx, "policy.upload_contract", attribute.String("policy_id", p.PolicyID))
	defer span.End()

	body, err := u.checkContract(in)
	if err != nil {
		return nil, err
	}

	// The key's version is a hint; the row's version is assigned under lock.
	next := 1
	if cur, err := u.repos.Contracts.GetCurrent(ctx, p.ID); err == nil {
		next = cur.Version + 1
	}
	now := u.machine.Now()
	contractID := id.NewID32()
	key := document.ContractKey(p.PolicyNumber, next, now, contractID, in.FileName)
	if err := u.store.Put(ctx, key, body, in.Size, contractMIME); err != nil {
		u.log.Error("contract bytes not stored",
			slog.String("policy_id", p.PolicyID), slog.String("storage_key", key), slog.String("error", err.Error()))
		return nil, document.ErrStorage.Wrap(err)
	}

	c := &domain.Contract{
		ContractID: contractID,
		PolicyID:   p.ID,
		IsCurrent:  true,
		FileName:   in.FileName,
		StorageKey: key,
		FileSize:   in.Size,
		MimeType:   contractMIME,
		UploadedBy: activity.PerformedByStaff.Prefix() + s.UserID,
	}
	_, err = u.transition(ctx, s, policyID, authz.ActionContract, func(r uow.Repos, locked *domain.Policy, out *notification.Batch) error {
		if !acceptsContract(locked.Status) {
			return domain.ErrInvalidTransition.WithMessage(
				fmt.Sprintf("no se puede cargar un contrato: la póliza está en estado %s", locked.Status))
		}
		if cur, err := r.Contracts.GetCurrent(ctx, locked.ID); err == nil && cur.SignedAt != nil {
			return domain.ErrContractAlreadySigned
		} else if err != nil && !errors.Is(err, domain.ErrNoCurrentContract) {
			return err
		}
		last, err := r.Contracts.ClearCurrent(ctx, locked.ID)
		if err != nil {
			return err
		}
		c.Version = last + 1
		if err := r.Contracts.Create(ctx, c); err != nil {
			return err
		}
		if locked.Status == domain.StatusContractPending {
			return u.machine.Fire(ctx, r, locked, domain.EventContractUploaded, workflow.Input{By: staffBy(s, ip)}, out)
		}
		entry := activity.New(locked.ID, "contract_replaced", "Se cargó una nueva versión del contrato", staffBy(s, ip),
			map[string]any{"contract_id": c.ContractID, "contract_version": c.Version})
		entry.CreatedAt = now
		return r.Activity.Append(ctx, entry)
	})
	if err != nil {
		if derr := u.store.Delete(context.WithoutCancel(ctx), key); derr != nil {
			u.log.Warn("orphaned contract", slog.String("storage_key", key), slog.String("error", derr.Error()))
		}
		return nil, err
	}
	u.log.Info("contract uploaded", slog.String("policy_id", p.PolicyID), slog.Int("version", c.Version))
	return c, nil
}

func (u *Usecase) checkContract(in ContractUpload) (io.Reader, error) {
	if in.Size <= 0 || in.Body == nil {
		return nil, document.ErrEmptyFile
	}
	if u.maxBytes > 0 && in.Size > u.maxBytes {
		return nil, document.ErrTooLarge.
			WithMessage(fmt.Sprintf("el archivo excede el tamaño máximo de %d bytes", u.maxBytes)).
			WithFields(document.LimitField(u.maxBytes))
	}
	if document.NormalizeMIME(in.MimeType) != contractMIME {
		return nil, errContractNotPDF
	}
	br := bufio.NewReaderSize(io.LimitReader(in.Body, in.Size), 512)
	head, _ := br.Peek(512)
	if document.NormalizeMIME(http.DetectContentType(head)) != contractMIME {
		return nil, errContractNotPDF
	}
	return br, nil
}

// ContractURL signs the current contract for staff download.
func (u *Usecase) ContractURL(ctx context.Context, s auth.Session, policyID, ip string) (*ContractURLDTO, error) {
	p, err := workflow.PolicyForStaff(ctx, u.repos.Policies, u.authz, s, policyID, authz.ActionRead)
	if err != nil {
		return nil, err
	}
	c, err := u.repos.Contracts.GetCurrent(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	url, err := u.store.SignedURL(ctx, c.StorageKey, u.urlTTL, c.FileName)
	if err != nil {
		u.log.Error("signed url failed", slog.String("storage_key", c.StorageKey), slog.String("error", err.Error()))
		return nil, document.ErrStorage.Wrap(err)
	}
	entry := activity.New(p.ID, "contract_downloaded", "Descarga de contrato", staffBy(s, ip),
		map[string]any{"contract_id": c.ContractID, "contract_version": c.Version})
	entry.CreatedAt = u.machine.Now()
	if err := u.repos.Activity.Append(ctx, entry); err != nil {
		return nil, err
	}
	return &ContractURLDTO{DownloadURL: url, FileName: c.FileName, Version: c.Version, ExpiresIn: int(u.urlTTL.Seconds())}, nil
}
