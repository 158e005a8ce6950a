package http

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"

	"leaseprotect/internal/infrastructure/storage"

	"github.com/labstack/echo/v4"
)

// FileHandler serves blobs of the local store behind HMAC-signed URLs. It
// is only mounted when STORAGE_DRIVER=local; S3 URLs go to the bucket.
type FileHandler struct {
	store *storage.LocalStore
	log   *slog.Logger
}

func NewFileHandler(store *storage.LocalStore, log *slog.Logger) *FileHandler {
	return &FileHandler{store: store, log: log}
}

func (h *FileHandler) Serve(c echo.Context) error {
	key, err := url.PathUnescape(c.Param("*"))
	if err != nil || key == "" {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "archivo no encontrado", Code: "file_not_found"})
	}
	q := c.QueryParams()
	if err := h.store.Verify(key, q); err != nil {
		code := "bad_signature"
		if errors.Is(err, storage.ErrURLExpired) {
			code = "url_expired"
		}
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "enlace inválido o expirado", Code: code})
	}
	f, err := h.store.Open(key)
	if err != nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "archivo no encontrado", Code: "file_not_found"})
	}
	defer f.Close()

	name := q.Get("name")
	if name == "" {
		name = path.Base(key)
	}
	ct := mime.TypeByExtension(path.Ext(name))
	if ct == "" {
		ct = echo.MIMEOctetStream
	}
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	resp.Header().Set("Cache-Control", "private, no-store")
	resp.Header().Set("X-Content-Type-Options", "nosniff")
	return c.Stream(http.StatusOK, ct, io.Reader(f))
}
