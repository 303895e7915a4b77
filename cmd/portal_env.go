package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/medspa-portal/internal/config"
	"github.com/sells-group/medspa-portal/internal/photomatch"
	"github.com/sells-group/medspa-portal/internal/portal"
	"github.com/sells-group/medspa-portal/internal/resilience"
	"github.com/sells-group/medspa-portal/internal/store"
	"github.com/sells-group/medspa-portal/pkg/airtable"
	"github.com/sells-group/medspa-portal/pkg/analysis"
	"github.com/sells-group/medspa-portal/pkg/gcs"
)

// portalEnv holds the initialized clients, store and service used by the
// serve and import commands.
type portalEnv struct {
	Store   store.Store
	Service *portal.Service
}

// Close releases resources held by the environment.
func (pe *portalEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func newAirtableClient(c *config.Config) airtable.Client {
	return airtable.NewClient(c.Airtable.Token, c.Airtable.BaseID,
		airtable.WithBaseURL(c.Airtable.BaseURL),
		airtable.WithRateLimit(c.Airtable.RateLimit),
		airtable.WithRetry(resilience.FromConfig(c.Retry)),
		airtable.WithHTTPClient(&http.Client{Timeout: time.Duration(c.Airtable.TimeoutSecs) * time.Second}),
	)
}

// initPortal sets up the store and API clients and builds the Service.
// The analysis and upload integrations are optional: when unconfigured the
// routes that need them report the service as unavailable. Callers should
// defer env.Close().
func initPortal(ctx context.Context, c *config.Config) (*portalEnv, error) {
	svcCfg, err := portal.ConfigFrom(c)
	if err != nil {
		return nil, err
	}

	catalog, err := photomatch.LoadCatalog(c.PhotoMatch.CatalogPath)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, c.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	deps := portal.Deps{
		Airtable: newAirtableClient(c),
		Store:    st,
		Catalog:  catalog,
	}

	if c.Analysis.BaseURL != "" {
		retry := resilience.FromConfig(c.Retry)
		deps.Analysis = analysis.NewClient(c.Analysis.BaseURL, c.Analysis.Key,
			analysis.WithRetry(retry),
			analysis.WithHTTPClient(&http.Client{Timeout: time.Duration(c.Analysis.TimeoutSecs) * time.Second}),
			analysis.WithCircuitBreaker(resilience.NewCircuitBreaker("analysis",
				c.Analysis.FailureThreshold,
				time.Duration(c.Analysis.ResetTimeoutSecs)*time.Second)),
		)
	} else {
		zap.L().Warn("analysis.base_url not set, image analysis disabled")
	}

	if c.GCS.Bucket != "" {
		opts := []gcs.Option{
			gcs.WithUploadBaseURL(c.GCS.UploadBaseURL),
			gcs.WithPublicBaseURL(c.GCS.PublicBaseURL),
			gcs.WithRetry(resilience.FromConfig(c.Retry)),
		}
		if c.GCS.CredentialsFile != "" {
			data, err := os.ReadFile(c.GCS.CredentialsFile)
			if err != nil {
				_ = st.Close()
				return nil, eris.Wrap(err, "read gcs credentials")
			}
			opts = append(opts, gcs.WithCredentialsJSON(data))
		}
		uploader, err := gcs.NewClient(ctx, c.GCS.Bucket, opts...)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		deps.Uploader = uploader
	} else {
		zap.L().Warn("gcs.bucket not set, uploads disabled")
	}

	zap.L().Info("portal initialized",
		zap.String("store", c.Store.Driver),
		zap.Int("gallery_photos", catalog.Len()),
		zap.Bool("analysis", deps.Analysis != nil),
		zap.Bool("uploads", deps.Uploader != nil),
	)

	return &portalEnv{
		Store:   st,
		Service: portal.New(svcCfg, deps),
	}, nil
}
