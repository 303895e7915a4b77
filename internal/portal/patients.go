package portal

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/medspa-portal/internal/model"
	"github.com/sells-group/medspa-portal/pkg/airtable"
)

const (
	defaultPatientLimit = 100
	maxPatientLimit     = 1000
)

// ListPatients returns the newest patients matching filter. Airtable has no
// sortable creation field, so every match is fetched and the limit applies
// after sorting.
func (s *Service) ListPatients(ctx context.Context, filter model.PatientFilter) ([]model.Patient, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalid("portal: unknown status %q", filter.Status)
	}
	limit := filter.Limit
	switch {
	case limit <= 0:
		limit = defaultPatientLimit
	case limit > maxPatientLimit:
		limit = maxPatientLimit
	}

	records, err := s.airtable.List(ctx, s.cfg.Tables.Patients, airtable.ListOptions{
		FilterByFormula: patientFormula(filter),
	})
	if err != nil {
		return nil, eris.Wrap(err, "portal: list patients")
	}

	out := make([]model.Patient, 0, len(records))
	for _, r := range records {
		out = append(out, patientFromRecord(r))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// patientFormula builds the filterByFormula for a listing: an exact status
// match and a case-insensitive substring search over name and email.
func patientFormula(filter model.PatientFilter) string {
	var conds []string
	if filter.Status != "" {
		conds = append(conds, fmt.Sprintf(`{Status} = %s`, airtable.EscapeFormulaString(string(filter.Status))))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		lq := airtable.EscapeFormulaString(strings.ToLower(q))
		conds = append(conds, fmt.Sprintf(
			`OR(SEARCH(%s, LOWER({Name} & "")), SEARCH(%s, LOWER({Email} & "")))`, lq, lq))
	}
	switch len(conds) {
	case 0:
		return ""
	case 1:
		return conds[0]
	}
	return "AND(" + strings.Join(conds, ", ") + ")"
}

// GetPatient fetches one patient. Provider reads are audited.
func (s *Service) GetPatient(ctx context.Context, id string) (*model.Patient, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("portal: patient id is required")
	}
	rec, err := s.airtable.Get(ctx, s.cfg.Tables.Patients, id)
	if err != nil {
		return nil, eris.Wrapf(err, "portal: get patient %s", id)
	}
	p := patientFromRecord(*rec)

	if provider := ProviderFrom(ctx); provider != "" {
		s.Audit(ctx, provider, model.AuditViewPatient, id, "")
	}
	return &p, nil
}

func validatePatientInput(in *model.PatientInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if in.Name == "" {
		return invalid("portal: name is required")
	}
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			return invalid("portal: invalid email %q", in.Email)
		}
	}
	if in.Age < 0 || in.Age > 120 {
		return invalid("portal: invalid age %d", in.Age)
	}
	return nil
}

// CreatePatient stores a questionnaire submission with status New.
func (s *Service) CreatePatient(ctx context.Context, in model.PatientInput) (*model.Patient, error) {
	if err := validatePatientInput(&in); err != nil {
		return nil, err
	}

	recs, err := s.airtable.Create(ctx, s.cfg.Tables.Patients, []airtable.Fields{patientInputFields(in)})
	if err != nil {
		return nil, eris.Wrap(err, "portal: create patient")
	}
	if len(recs) == 0 {
		return nil, eris.New("portal: create patient: empty response")
	}
	p := patientFromRecord(recs[0])

	zap.L().Info("portal: patient created", zap.String("patient_id", p.ID))
	return &p, nil
}

// RowError is an import row that failed validation.
type RowError struct {
	Index int
	Err   error
}

// ImportPatients validates inputs and creates the valid ones in bulk.
// Invalid rows are skipped and reported. With dryRun nothing is written and
// the count is the number of rows that would be created.
func (s *Service) ImportPatients(ctx context.Context, inputs []model.PatientInput, dryRun bool) (int, []RowError, error) {
	var (
		fields  []airtable.Fields
		rowErrs []RowError
	)
	for i := range inputs {
		in := inputs[i]
		if err := validatePatientInput(&in); err != nil {
			rowErrs = append(rowErrs, RowError{Index: i, Err: err})
			continue
		}
		fields = append(fields, patientInputFields(in))
	}
	if dryRun || len(fields) == 0 {
		return len(fields), rowErrs, nil
	}

	recs, err := s.airtable.Create(ctx, s.cfg.Tables.Patients, fields)
	if err != nil {
		return len(recs), rowErrs, eris.Wrap(err, "portal: import patients")
	}
	zap.L().Info("portal: patients imported", zap.Int("created", len(recs)), zap.Int("skipped", len(rowErrs)))
	return len(recs), rowErrs, nil
}

// UpdatePatient applies a partial update.
func (s *Service) UpdatePatient(ctx context.Context, id string, u model.PatientUpdate) (*model.Patient, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("portal: patient id is required")
	}
	if u.Empty() {
		return nil, invalid("portal: no fields to update")
	}
	if u.Status != nil && !u.Status.Valid() {
		return nil, invalid("portal: unknown status %q", *u.Status)
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return nil, invalid("portal: name cannot be empty")
	}

	fields := patientUpdateFields(u)
	rec, err := s.airtable.Update(ctx, s.cfg.Tables.Patients, id, fields)
	if err != nil {
		return nil, eris.Wrapf(err, "portal: update patient %s", id)
	}
	p := patientFromRecord(*rec)

	if provider := ProviderFrom(ctx); provider != "" {
		s.Audit(ctx, provider, model.AuditUpdatePatient, id, strings.Join(sortedKeys(fields), ","))
	}
	return &p, nil
}

// DeletePatient removes a patient record.
func (s *Service) DeletePatient(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid("portal: patient id is required")
	}
	if err := s.airtable.Delete(ctx, s.cfg.Tables.Patients, id); err != nil {
		return eris.Wrapf(err, "portal: delete patient %s", id)
	}

	if provider := ProviderFrom(ctx); provider != "" {
		s.Audit(ctx, provider, model.AuditDeletePatient, id, "")
	}
	return nil
}

// PatientFindings returns a patient's findings scaled for display, most
// severe first.
func (s *Service) PatientFindings(ctx context.Context, id string) ([]model.Finding, error) {
	p, err := s.GetPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	mapper := s.Mapper(ctx)
	return mapper.ApplyAll(p.Findings), nil
}

func sortedKeys(f airtable.Fields) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
