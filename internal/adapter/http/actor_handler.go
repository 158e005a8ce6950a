package http

import (
	"log/slog"
	"net/http"

	"leaseprotect/internal/domain/apperr"
	ucactor "leaseprotect/internal/usecase/actor"
	"leaseprotect/internal/usecase/document"
	"leaseprotect/internal/usecase/token"

	"github.com/labstack/echo/v4"
)

// ActorHandler serves the self-service routes under /actor/:type/:token.
// Everything but validate runs behind ActorAuth.
type ActorHandler struct {
	tokens *token.Usecase
	actors *ucactor.Usecase
	docs   *document.Usecase
	log    *slog.Logger
}

func NewActorHandler(tokens *token.Usecase, actors *ucactor.Usecase, docs *document.Usecase, log *slog.Logger) *ActorHandler {
	return &ActorHandler{tokens: tokens, actors: actors, docs: docs, log: log}
}

// Validate answers 400 {valid:false} for any bad token so the landing page
// can show one message.
func (h *ActorHandler) Validate(c echo.Context) error {
	dto, err := h.tokens.Validate(c.Request().Context(), c.Param("type"), c.Param("token"))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindAuth {
			ae, _ := apperr.As(err)
			return c.JSON(http.StatusBadRequest, map[string]any{"valid": false, "error": ae.Message, "code": ae.Code})
		}
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *ActorHandler) Submit(c echo.Context) error {
	who, ok := actorOf(c)
	if !ok {
		return unauthenticated(c)
	}
	var req ucactor.SubmitInput
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	res, err := h.actors.Submit(c.Request().Context(), who, req, c.RealIP())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *ActorHandler) UploadDocument(c echo.Context) error {
	who, ok := actorOf(c)
	if !ok {
		return unauthenticated(c)
	}
	up, err := formFile(c)
	if err != nil {
		return missingFile(c)
	}
	defer up.file.Close()

	doc, err := h.docs.Upload(c.Request().Context(), who, document.UploadInput{
		Category: c.FormValue("category"),
		FileName: up.header.Filename,
		MimeType: up.mime(),
		Size:     up.header.Size,
		Body:     up.file,
	}, c.RealIP())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *ActorHandler) ListDocuments(c echo.Context) error {
	who, ok := actorOf(c)
	if !ok {
		return unauthenticated(c)
	}
	dto, err := h.docs.List(c.Request().Context(), who)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *ActorHandler) DeleteDocument(c echo.Context) error {
	who, ok := actorOf(c)
	if !ok {
		return unauthenticated(c)
	}
	if err := h.docs.Delete(c.Request().Context(), who, c.Param("documentId"), c.RealIP()); err != nil {
		return writeError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ActorHandler) DownloadDocument(c echo.Context) error {
	who, ok := actorOf(c)
	if !ok {
		return unauthenticated(c)
	}
	dto, err := h.docs.DownloadURL(c.Request().Context(), who, c.Param("documentId"), c.RealIP())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}
