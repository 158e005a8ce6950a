package document

import (
	"fmt"

	"leaseprotect/internal/domain/apperr"
)

var (
	ErrNotFound        = apperr.NotFound("document_not_found", "documento no encontrado")
	ErrInvalidCategory = apperr.Validation("invalid_category", "categoría de documento inválida")
	ErrMimeNotAllowed  = apperr.Validation("mime_not_allowed", "tipo de archivo no permitido; solo se aceptan PDF, PNG, JPEG o WEBP")
	ErrTooLarge        = apperr.Validation("file_too_large", "el archivo excede el tamaño máximo permitido")
	ErrEmptyFile       = apperr.Validation("empty_file", "el archivo está vacío")
	ErrReviewReason    = apperr.Validation("review_reason_required", "el rechazo de un documento requiere un motivo")
	ErrVerified        = apperr.Conflict("document_verified", "el documento ya fue verificado y no puede eliminarse")
	ErrStorage         = apperr.Infra("storage_failure", "no se pudo acceder al almacenamiento de archivos", nil)
)

// LimitField names the byte ceiling an upload violated.
func LimitField(limit int64) apperr.FieldError {
	return apperr.FieldError{Field: "file", Message: fmt.Sprintf("tamaño máximo %d bytes", limit)}
}
