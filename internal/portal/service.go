// Package portal implements the patient intake and provider portal
// operations on top of Airtable, the analysis service and GCS.
package portal

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/medspa-portal/internal/config"
	"github.com/sells-group/medspa-portal/internal/model"
	"github.com/sells-group/medspa-portal/internal/photomatch"
	"github.com/sells-group/medspa-portal/internal/severity"
	"github.com/sells-group/medspa-portal/internal/store"
	"github.com/sells-group/medspa-portal/pkg/airtable"
	"github.com/sells-group/medspa-portal/pkg/analysis"
	"github.com/sells-group/medspa-portal/pkg/gcs"
)

// Sentinel errors mapped to HTTP statuses by the api package.
var (
	ErrInvalidInput = eris.New("invalid input")
	ErrUnauthorized = eris.New("unauthorized")
	ErrUnavailable  = eris.New("service not configured")
	ErrNotFound     = airtable.ErrNotFound
)

// Tables names the Airtable tables.
type Tables struct {
	Patients  string
	Interests string
	Severity  string
}

// Config holds the service settings.
type Config struct {
	Tables         Tables
	Severity       severity.Config
	DefaultFactor  float64
	MappingTTL     time.Duration
	AnalysisTTL    time.Duration
	MaxUploadBytes int64
	JWTSecret      []byte
	SessionTTL     time.Duration
	ProviderCodes  map[string]string
}

// ConfigFrom derives service settings from the application config.
func ConfigFrom(c *config.Config) (Config, error) {
	sev, err := severity.FromConfig(c.Severity)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Tables: Tables{
			Patients:  c.Airtable.PatientsTable,
			Interests: c.Airtable.InterestsTable,
			Severity:  c.Airtable.SeverityTable,
		},
		Severity:       sev,
		DefaultFactor:  c.Severity.DefaultFactor,
		MappingTTL:     time.Duration(c.Airtable.MappingCacheSecs) * time.Second,
		AnalysisTTL:    time.Duration(c.Analysis.CacheTTLHours) * time.Hour,
		MaxUploadBytes: int64(c.GCS.MaxUploadMB) << 20,
		JWTSecret:      []byte(c.Auth.JWTSecret),
		SessionTTL:     time.Duration(c.Auth.SessionTTLHours) * time.Hour,
		ProviderCodes:  c.Auth.ProviderCodes,
	}, nil
}

// Deps are the collaborators of a Service. Analysis, Uploader and Store may
// be nil; the operations that need them then fail with ErrUnavailable
// (analysis, upload) or skip caching and auditing (store).
type Deps struct {
	Airtable airtable.Client
	Analysis analysis.Client
	Uploader gcs.Uploader
	Store    store.Store
	Catalog  *photomatch.Catalog
}

// Service implements the portal operations.
type Service struct {
	cfg      Config
	airtable airtable.Client
	analysis analysis.Client
	uploader gcs.Uploader
	store    store.Store
	catalog  *photomatch.Catalog
	now      func() time.Time

	mu          sync.Mutex
	mappings    []model.SeverityMapping
	mappingsAt  time.Time
	mappingsSet bool
}

// New creates a Service.
func New(cfg Config, deps Deps) *Service {
	if cfg.Tables.Patients == "" {
		cfg.Tables.Patients = "Patients"
	}
	if cfg.Tables.Interests == "" {
		cfg.Tables.Interests = "Interest Items"
	}
	if cfg.Tables.Severity == "" {
		cfg.Tables.Severity = "Severity Mappings"
	}
	if cfg.Severity.Range.Min >= cfg.Severity.Range.Max {
		cfg.Severity = severity.DefaultConfig()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	catalog := deps.Catalog
	if catalog == nil {
		catalog = photomatch.NewCatalog(nil)
	}
	return &Service{
		cfg:      cfg,
		airtable: deps.Airtable,
		analysis: deps.Analysis,
		uploader: deps.Uploader,
		store:    deps.Store,
		catalog:  catalog,
		now:      time.Now,
	}
}

// Catalog returns the photo catalog used for recommendations.
func (s *Service) Catalog() *photomatch.Catalog { return s.catalog }

func invalid(format string, args ...any) error {
	return eris.Wrapf(ErrInvalidInput, format, args...)
}
