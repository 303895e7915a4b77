// Package api exposes the portal over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/medspa-portal/internal/config"
	"github.com/sells-group/medspa-portal/internal/model"
	"github.com/sells-group/medspa-portal/internal/photomatch"
	"github.com/sells-group/medspa-portal/internal/portal"
	"github.com/sells-group/medspa-portal/pkg/gcs"
)

// SessionCookie carries the provider session token for browser clients.
const SessionCookie = "provider_session"

// Portal is the set of operations served over HTTP. *portal.Service
// implements it.
type Portal interface {
	Login(ctx context.Context, code string) (*portal.Session, error)
	VerifySession(token string) (*portal.Claims, error)

	ListPatients(ctx context.Context, filter model.PatientFilter) ([]model.Patient, error)
	GetPatient(ctx context.Context, id string) (*model.Patient, error)
	CreatePatient(ctx context.Context, in model.PatientInput) (*model.Patient, error)
	UpdatePatient(ctx context.Context, id string, u model.PatientUpdate) (*model.Patient, error)
	DeletePatient(ctx context.Context, id string) error
	PatientFindings(ctx context.Context, id string) ([]model.Finding, error)

	ListInterests(ctx context.Context, patientID string) ([]model.InterestItem, error)
	CreateInterest(ctx context.Context, in model.InterestItem) (*model.InterestItem, error)
	DeleteInterest(ctx context.Context, id string) error

	SeverityMappings(ctx context.Context) ([]model.SeverityMapping, error)
	Analyze(ctx context.Context, req portal.AnalyzeRequest) (*model.AnalysisResult, error)
	Upload(ctx context.Context, req portal.UploadRequest) (*gcs.Object, error)
	ListAudit(ctx context.Context, filter model.AuditFilter) ([]model.AuditEntry, error)
	Catalog() *photomatch.Catalog
}

// Options configures the HTTP layer.
type Options struct {
	AllowedOrigins  []string
	SecureCookie    bool
	LoginRatePerMin int
	MaxUploadBytes  int64
	RequestTimeout  time.Duration
	TrustProxy      bool
}

// OptionsFrom derives Options from the application config.
func OptionsFrom(c *config.Config) Options {
	return Options{
		AllowedOrigins:  c.Auth.AllowedOrigins,
		SecureCookie:    c.Auth.SecureCookie,
		LoginRatePerMin: c.Auth.LoginRatePerMin,
		MaxUploadBytes:  int64(c.GCS.MaxUploadMB) << 20,
		RequestTimeout:  time.Duration(c.Server.RequestTimeoutS) * time.Second,
		TrustProxy:      c.Server.TrustProxy,
	}
}

type server struct {
	portal Portal
	opts   Options
	logins *loginLimiter
}

// NewRouter builds the HTTP handler.
func NewRouter(p Portal, opts Options) http.Handler {
	s := &server{
		portal: p,
		opts:   opts,
		logins: newLoginLimiter(opts.LoginRatePerMin, time.Now),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/provider/login", s.handleLogin)
		r.Post("/provider/logout", s.handleLogout)
		r.Post("/patients", s.handleCreatePatient)
		r.Post("/upload", s.handleUpload)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/interests", s.handleCreateInterest)
		r.Get("/severity-mappings", s.handleSeverityMappings)
		r.Get("/treatments/best-photo", s.handleBestPhoto)

		r.Group(func(r chi.Router) {
			r.Use(s.requireProvider)
			r.Get("/patients", s.handleListPatients)
			r.Get("/patients/{id}", s.handleGetPatient)
			r.Patch("/patients/{id}", s.handleUpdatePatient)
			r.Delete("/patients/{id}", s.handleDeletePatient)
			r.Get("/patients/{id}/findings", s.handlePatientFindings)
			r.Get("/patients/{id}/interests", s.handleListInterests)
			r.Delete("/interests/{id}", s.handleDeleteInterest)
			r.Get("/audit", s.handleListAudit)
		})
	})

	return r
}
