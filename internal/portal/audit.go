package portal

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/medspa-portal/internal/model"
)

// Audit records a provider action. Failures are logged and never fail the
// calling operation.
func (s *Service) Audit(ctx context.Context, provider string, action model.AuditAction, target, detail string) {
	log := zap.L().With(
		zap.String("provider", provider),
		zap.String("action", string(action)),
		zap.String("target", target),
	)
	if s.store == nil {
		log.Debug("portal: audit (no store)")
		return
	}
	if _, err := s.store.RecordAudit(ctx, model.AuditEntry{
		Provider:  provider,
		Action:    action,
		Target:    target,
		Detail:    detail,
		CreatedAt: s.now(),
	}); err != nil {
		log.Warn("portal: audit write failed", zap.Error(err))
	}
}

// ListAudit returns audit entries, newest first.
func (s *Service) ListAudit(ctx context.Context, filter model.AuditFilter) ([]model.AuditEntry, error) {
	if s.store == nil {
		return []model.AuditEntry{}, nil
	}
	entries, err := s.store.ListAudit(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "portal: list audit")
	}
	if entries == nil {
		entries = []model.AuditEntry{}
	}
	return entries, nil
}
