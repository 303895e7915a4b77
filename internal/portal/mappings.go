package portal

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/medspa-portal/internal/model"
	"github.com/sells-group/medspa-portal/internal/severity"
	"github.com/sells-group/medspa-portal/pkg/airtable"
)

// SeverityMappings returns the severity mapping table, cached for
// MappingTTL. When a refresh fails and a cached copy exists, the stale copy
// is returned.
func (s *Service) SeverityMappings(ctx context.Context) ([]model.SeverityMapping, error) {
	s.mu.Lock()
	if s.mappingsSet && s.cfg.MappingTTL > 0 && s.now().Sub(s.mappingsAt) < s.cfg.MappingTTL {
		out := s.mappings
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	records, err := s.airtable.List(ctx, s.cfg.Tables.Severity, airtable.ListOptions{})
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.mappingsSet {
			zap.L().Warn("portal: serving stale severity mappings", zap.Error(err))
			return s.mappings, nil
		}
		return nil, eris.Wrap(err, "portal: list severity mappings")
	}

	out := make([]model.SeverityMapping, 0, len(records))
	for _, r := range records {
		if m := mappingFromRecord(r); m.Finding != "" {
			out = append(out, m)
		}
	}

	s.mu.Lock()
	s.mappings, s.mappingsAt, s.mappingsSet = out, s.now(), true
	s.mu.Unlock()
	return out, nil
}

// Mapper returns a severity mapper over the current mappings. If they
// cannot be loaded the base configuration is used alone.
func (s *Service) Mapper(ctx context.Context) *severity.Mapper {
	mappings, err := s.SeverityMappings(ctx)
	if err != nil {
		zap.L().Warn("portal: severity mappings unavailable, using defaults", zap.Error(err))
	}
	return severity.NewMapper(s.cfg.Severity, s.cfg.DefaultFactor, mappings)
}
