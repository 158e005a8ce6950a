package http

import (
	"mime/multipart"
	"net/http"

	"leaseprotect/internal/auth"

	"github.com/labstack/echo/v4"
)

func sessionOf(c echo.Context) (auth.Session, bool) {
	return auth.SessionFrom(c.Request().Context())
}

func actorOf(c echo.Context) (auth.ActorToken, bool) {
	p, _ := auth.FromContext(c.Request().Context())
	a, ok := p.(auth.ActorToken)
	return a, ok
}

func unauthenticated(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "se requiere autenticación", Code: "unauthenticated"})
}

type upload struct {
	header *multipart.FileHeader
	file   multipart.File
}

// formFile opens the "file" part of a multipart request. The caller closes
// the returned file.
func formFile(c echo.Context) (*upload, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	return &upload{header: fh, file: f}, nil
}

func (u *upload) mime() string { return u.header.Header.Get(echo.HeaderContentType) }

func missingFile(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "se requiere un archivo",
		Code:    "file_required",
		Details: []FieldError{{Field: "file", Message: "es obligatorio"}},
	})
}
