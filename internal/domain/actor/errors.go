package actor

import (
	"errors"

	"leaseprotect/internal/domain/apperr"
)

var (
	ErrNotFound = apperr.NotFound("actor_not_found", "participante no encontrado")
	// ErrTokenInvalid deliberately covers unknown, expired and revoked tokens.
	ErrTokenInvalid = apperr.Auth("token_invalid", "token inválido o expirado")
	// ErrExpired is the cause carried by ErrTokenExpired; clients see the
	// same code and message as any other invalid token.
	ErrExpired      = errors.New("actor token expired")
	ErrTokenExpired = ErrTokenInvalid.Wrap(ErrExpired)

	ErrInvalidKind          = apperr.Validation("invalid_actor_type", "tipo de participante inválido")
	ErrReasonRequired       = apperr.Validation("rejection_reason_required", "el rechazo requiere un motivo")
	ErrInvalidAction        = apperr.Validation("invalid_action", "acción inválida; use approve, reject o reset")
	ErrIncompleteForApprove = apperr.Conflict("information_incomplete", "el participante no ha completado su información")
	ErrAlreadyApproved      = apperr.Conflict("already_approved", "el participante ya fue aprobado")
	ErrNotRejected          = apperr.Conflict("not_rejected", "solo un participante rechazado puede volver a revisión")
	ErrTenantExists         = apperr.Conflict("tenant_exists", "la póliza ya tiene un inquilino")
	ErrPrimaryLandlordTaken = apperr.Conflict("primary_landlord_exists", "la póliza ya tiene un arrendador principal")
)
