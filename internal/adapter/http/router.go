package http

import (
	"log/slog"
	"time"

	mw "leaseprotect/internal/adapter/middleware"
	"leaseprotect/internal/auth"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
)

// Routes bundles what Register mounts. Files is nil unless blobs are kept
// on local disk.
type Routes struct {
	Health   *Handler
	Policies *PolicyHandler
	Actors   *ActorHandler
	Files    *FileHandler

	Tokens  *auth.TokenManager
	ActorIn mw.ActorAuthenticator
	Redis   *redis.Client

	IdempTTL       time.Duration
	ActorPerMinute int
	BodyLimit      string
	Log            *slog.Logger
}

func Register(e *echo.Echo, r Routes) {
	e.Validator = NewValidator()
	e.HTTPErrorHandler = ErrorHandler(r.Log)

	e.GET("/health", r.Health.Health)
	e.GET("/ready", r.Health.Ready)
	if r.Files != nil {
		e.GET("/files/*", r.Files.Serve)
	}

	body := middleware.BodyLimit(r.BodyLimit)

	// /actor/:type/:token/validate sits outside ActorAuth so the landing
	// page always gets the {valid:false} shape.
	limited := mw.RateLimit(r.Redis, "actor", r.ActorPerMinute, time.Minute, r.Log)
	e.GET("/actor/:type/:token/validate", r.Actors.Validate, limited)

	a := e.Group("/actor/:type/:token", limited, mw.ActorAuth(r.ActorIn, r.Log), body)
	a.POST("/submit", r.Actors.Submit)
	a.GET("/documents", r.Actors.ListDocuments)
	a.POST("/documents", r.Actors.UploadDocument)
	a.DELETE("/documents/:documentId", r.Actors.DeleteDocument)
	a.GET("/documents/:documentId/download", r.Actors.DownloadDocument)

	s := e.Group("/policies", mw.StaffAuth(r.Tokens), body, mw.Idempotency(r.Redis, r.IdempTTL, r.Log))
	p := r.Policies
	s.POST("", p.Create)
	s.GET("/:id", p.Get)
	s.PUT("/:id", p.UpdateStatus)
	s.GET("/:id/progress", p.Progress)
	s.GET("/:id/activity", p.Activity)
	s.GET("/:id/share-links", p.ShareLinks)

	s.POST("/:id/actors/:type", p.AddActor)
	s.POST("/:id/actors/:type/:actorId/verify", p.VerifyActor)
	s.POST("/:id/actors/:type/:actorId/regenerate-token", p.RegenerateToken)
	s.POST("/:id/actors/:type/:actorId/documents", p.StaffUpload)

	s.POST("/:id/documents/:documentId/verify", p.ReviewDocument)
	s.GET("/:id/documents/:documentId/download", p.DownloadDocument)

	s.POST("/:id/investigation", p.RecordInvestigation)
	s.POST("/:id/investigation/landlord-override", p.LandlordOverride)

	s.POST("/:id/contracts", p.UploadContract)
	s.GET("/:id/contracts/current/download", p.ContractDownload)
	s.PUT("/:id/contracts/mark-signed", p.MarkSigned)

	s.POST("/:id/activate", p.Activate)
	s.POST("/:id/cancel", p.Cancel)
}
