package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"leaseprotect/internal/usecase/document"
	"leaseprotect/internal/usecase/policy"
	"leaseprotect/internal/usecase/token"
	"leaseprotect/internal/usecase/verification"

	"github.com/labstack/echo/v4"
)

// PolicyHandler serves the staff routes under /policies. Every route runs
// behind StaffAuth; per-policy authorization happens in the usecases.
type PolicyHandler struct {
	policies *policy.Usecase
	tokens   *token.Usecase
	verify   *verification.Usecase
	docs     *document.Usecase
	log      *slog.Logger
}

func NewPolicyHandler(p *policy.Usecase, t *token.Usecase, v *verification.Usecase, d *document.Usecase, log *slog.Logger) *PolicyHandler {
	return &PolicyHandler{policies: p, tokens: t, verify: v, docs: d, log: log}
}

// bindJSON binds and validates req, writing the 400/422 itself. The
// returned bool says whether the handler may go on.
func bindJSON(c echo.Context, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, badBody(c)
	}
	if err := c.Validate(req); err != nil {
		return false, invalid(c, err)
	}
	return true, nil
}

func (h *PolicyHandler) Create(c echo.Context) error {
	s, ok := sessionOf(c)
	if !ok {
		return unauthenticated(c)
	}
	var req policy.CreateInput
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	dto, err := h.policies.Create(c.Request().Context(), s, req, c.RealIP())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *PolicyHandler) Get(c echo.Context) error {
	s, ok := sessionOf(c)
	if !ok {
		return unauthenticated(c)
	}
	dto, err := h.policies.Get(c.Request().Context(), s, c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *PolicyHandler) UpdateStatus(c echo.Context) error {
	s, ok := sessionOf(c)
	if !ok {
		return unauthenticated(c)
	}
	var req policy.UpdateStatusInput
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	p, err := h.policies.UpdateStatus(c.Request().Context(), s, c.Param("id"), req, c.RealIP())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PolicyHandler) AddActor(c echo.Context) error {
	s, ok := sessionOf(c)
	if !ok {
		return unauthenticated(c)
	}
	var req policy.ActorInput
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	a, err := h.policies.AddActor(c.Request().Context(), s, c.Param("id"), c.Param("type"), req, c.RealIP())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *PolicyHandler) VerifyActor(c echo.Context) error {
	s, ok := sessionOf(c)
	if !ok {
		return unauthenticated(c)
	}
	var req verification.DecideInput
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	res, err := h.verify.Decide(c.Request().Context(), s, c.Param("id"), c.Param("type"), c.Param("actorId"), req, c.RealIP())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *PolicyHandler) RegenerateToken(c echo.Context) error {
	s, ok := sessionOf(c)
	if !ok {
		return unauthenticated(c)
	}
	link, err := h.tokens.Regenerate(c.Request().Context(), s, c.Param("id"), c.Param("type"), c.Param("actorId"), c.RealIP())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, link)
}

func (h *PolicyHandler) ShareLinks(c echo.Context) error {
	s, ok := sessionOf(c)
	if !ok {
		return unauthenticated(c)
	}
	links, err := h.tokens.ShareLinks(c.Request().Context(), s, c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"links": links})
}

func (h *PolicyHandler) RecordInvestigation(c echo.Context) error {
	s, ok := sessionOf(c)
	if !ok {
		return unauthenticated(c)
	}
	var req policy.VerdictInput
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	inv, err := h.policies.RecordInvestigation(c.Request().Context(), s, c.Param("id"), req, c.RealIP())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *PolicyHandler) LandlordOverride(c echo.Context) error {
	s, ok := sessionOf(c)
	if !ok {
		return unauthenticated(c)
	}
	var req policy.OverrideInput
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	p, err := h.policies.LandlordOverride(c.Request().Context(), s, c.Param("id"), req, c.RealIP())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PolicyHandler) Cancel(c echo.Context) error {
	s, ok := sessionOf(c)
	if !ok {
		return unauthenticated(c)
	}
	var req policy.CancelInput
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	p, err := h.policies.Cancel(c.Request().Context(), s, c.Param("id"), req, c.RealIP())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PolicyHandler) Activate(c echo.Context) error {
	s, ok := sessionOf(c)
	if !ok {
		return unauthenticated(c)
	}
	p, err := h.policies.Activate(c.Request().Context(), s, c.Param("id"), c.RealIP())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PolicyHandler) UploadContract(c echo.Context) error {
	s, ok := sessionOf(c)
	if !ok {
		return unauthenticated(c)
	}
	up, err := formFile(c)
	if err != nil {
		return missingFile(c)
	}
	defer up.file.Close()

	contract, err := h.policies.UploadContract(c.Request().Context(), s, c.Param("id"), policy.ContractUpload{
		FileName: up.header.Filename,
		MimeType: up.mime(),
		Size:     up.header.Size,
		Body:     up.file,
	}, c.RealIP())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, contract)
}

func (h *PolicyHandler) ContractDownload(c echo.Context) error {
	s, ok := sessionOf(c)
	if !ok {
		return unauthenticated(c)
	}
	dto, err := h.policies.ContractURL(c.Request().Context(), s, c.Param("id"), c.RealIP())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *PolicyHandler) MarkSigned(c echo.Context) error {
	s, ok := sessionOf(c)
	if !ok {
		return unauthenticated(c)
	}
	p, err := h.policies.MarkSigned(c.Request().Context(), s, c.Param("id"), c.RealIP())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PolicyHandler) Progress(c echo.Context) error {
	s, ok := sessionOf(c)
	if !ok {
		return unauthenticated(c)
	}
	pr, err := h.policies.Progress(c.Request().Context(), s, c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, pr)
}

func (h *PolicyHandler) Activity(c echo.Context) error {
	s, ok := sessionOf(c)
	if !ok {
		return unauthenticated(c)
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	dto, err := h.policies.Activity(c.Request().Context(), s, c.Param("id"), limit)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *PolicyHandler) StaffUpload(c echo.Context) error {
	s, ok := sessionOf(c)
	if !ok {
		return unauthenticated(c)
	}
	up, err := formFile(c)
	if err != nil {
		return missingFile(c)
	}
	defer up.file.Close()

	doc, err := h.docs.StaffUpload(c.Request().Context(), s, c.Param("id"), c.Param("actorId"), document.UploadInput{
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

func (h *PolicyHandler) ReviewDocument(c echo.Context) error {
	s, ok := sessionOf(c)
	if !ok {
		return unauthenticated(c)
	}
	var req document.ReviewInput
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	doc, err := h.docs.Review(c.Request().Context(), s, c.Param("id"), c.Param("documentId"), req, c.RealIP())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *PolicyHandler) DownloadDocument(c echo.Context) error {
	s, ok := sessionOf(c)
	if !ok {
		return unauthenticated(c)
	}
	dto, err := h.docs.StaffDownloadURL(c.Request().Context(), s, c.Param("id"), c.Param("documentId"), c.RealIP())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}
