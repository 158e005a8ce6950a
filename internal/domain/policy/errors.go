package policy

import "leaseprotect/internal/domain/apperr"

var (
	ErrNotFound              = apperr.NotFound("policy_not_found", "póliza no encontrada")
	ErrInvalidTransition     = apperr.Conflict("invalid_transition", "la póliza no está en un estado que permita esta acción")
	ErrStaleState            = apperr.Conflict("stale_state", "la póliza cambió de estado durante la operación; vuelva a intentarlo")
	ErrActorsIncomplete      = apperr.Conflict("actors_incomplete", "no todos los participantes requeridos han completado su información")
	ErrActorsNotApproved     = apperr.Conflict("actors_not_approved", "no todos los participantes requeridos han sido aprobados")
	ErrActorInvariant        = apperr.Conflict("actor_invariant", "la póliza requiere exactamente un inquilino y un arrendador principal")
	ErrVerdictNotRejected    = apperr.Conflict("verdict_not_rejected", "la investigación no tiene un dictamen de rechazo vigente")
	ErrOverrideAlreadyMade   = apperr.Conflict("override_already_decided", "el arrendador ya registró una decisión sobre esta investigación")
	ErrNoCurrentContract     = apperr.Conflict("no_current_contract", "no existe un contrato vigente para la póliza")
	ErrContractAlreadySigned = apperr.Conflict("contract_already_signed", "el contrato ya fue marcado como firmado")
	ErrTerminal              = apperr.Conflict("policy_terminal", "la póliza ya se encuentra en un estado final")
	ErrNotAcceptingChanges   = apperr.Conflict("policy_locked", "la póliza ya no acepta cambios de los participantes")

	ErrInvalidGuarantorType = apperr.Validation("invalid_guarantor_type", "tipo de garantía inválido; use JOINT_OBLIGOR, AVAL o BOTH")
	ErrInvalidStatus        = apperr.Validation("invalid_status", "estado de póliza inválido")
	ErrReasonRequired       = apperr.Validation("reason_required", "se requiere un motivo")
	ErrCancelDetails        = apperr.Validation("cancellation_details_required", "la cancelación requiere un motivo válido y un comentario")
	ErrInvalidDecision      = apperr.Validation("invalid_decision", "decisión inválida; use PROCEED o REJECT")
	ErrInvalidVerdict       = apperr.Validation("invalid_verdict", "dictamen inválido; use APPROVED o REJECTED")
	ErrGuarantorMismatch    = apperr.Validation("guarantor_mismatch", "el tipo de garantía de la póliza no admite este tipo de obligado")
	ErrLandlordRequired     = apperr.Validation("landlord_required", "la póliza requiere al menos un arrendador")
)
