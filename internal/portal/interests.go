package portal

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/medspa-portal/internal/model"
	"github.com/sells-group/medspa-portal/pkg/airtable"
)

// ListInterests returns the interest items linked to a patient, oldest
// first. Linked-record fields hold record ids, which formulas cannot see,
// so the table is filtered here.
func (s *Service) ListInterests(ctx context.Context, patientID string) ([]model.InterestItem, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, invalid("portal: patient id is required")
	}
	records, err := s.airtable.List(ctx, s.cfg.Tables.Interests, airtable.ListOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "portal: list interests")
	}

	var out []model.InterestItem
	for _, r := range records {
		it := interestFromRecord(r)
		if it.PatientID == patientID {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// CreateInterest links a treatment to a patient.
func (s *Service) CreateInterest(ctx context.Context, in model.InterestItem) (*model.InterestItem, error) {
	in.PatientID = strings.TrimSpace(in.PatientID)
	in.Treatment = strings.TrimSpace(in.Treatment)
	if in.PatientID == "" || in.Treatment == "" {
		return nil, invalid("portal: patient_id and treatment are required")
	}

	fields := airtable.Fields{
		"Treatment": in.Treatment,
		"Patient":   []string{in.PatientID},
	}
	setText(fields, "Notes", in.Notes)

	recs, err := s.airtable.Create(ctx, s.cfg.Tables.Interests, []airtable.Fields{fields})
	if err != nil {
		return nil, eris.Wrap(err, "portal: create interest")
	}
	if len(recs) == 0 {
		return nil, eris.New("portal: create interest: empty response")
	}
	it := interestFromRecord(recs[0])
	return &it, nil
}

// DeleteInterest removes an interest item.
func (s *Service) DeleteInterest(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid("portal: interest id is required")
	}
	if err := s.airtable.Delete(ctx, s.cfg.Tables.Interests, id); err != nil {
		return eris.Wrapf(err, "portal: delete interest %s", id)
	}
	if provider := ProviderFrom(ctx); provider != "" {
		s.Audit(ctx, provider, model.AuditDeleteInterest, id, "")
	}
	return nil
}
