package portal

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/medspa-portal/internal/model"
	"github.com/sells-group/medspa-portal/pkg/airtable"
)

func TestListPatients(t *testing.T) {
	env := newTestEnv(t)

	patients, err := env.svc.ListPatients(context.Background(), model.PatientFilter{})
	require.NoError(t, err)
	require.Len(t, patients, 2)

	// Newest first.
	assert.Equal(t, "recBo", patients[0].ID)
	assert.Equal(t, "Bo Chen", patients[0].Name)
	assert.Equal(t, "bo@example.com", patients[0].Email)
	assert.Equal(t, model.PatientStatusNew, patients[0].Status)
	assert.Equal(t, "recAna", patients[1].ID)
	assert.Equal(t, model.PatientStatusScheduled, patients[1].Status)
	assert.InDelta(t, 70.0, patients[1].Score, 0.001)

	calls := env.at.listCalls("Patients")
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].FilterByFormula)
	assert.Zero(t, calls[0].MaxRecords)
}

func TestListPatientsLimitKeepsNewest(t *testing.T) {
	env := newTestEnv(t)
	var recs []airtable.Record
	for i := 1; i <= 5; i++ {
		recs = append(recs, airtable.Record{
			ID:          fmt.Sprintf("rec%d", i),
			CreatedTime: fmt.Sprintf("2026-01-0%dT09:00:00.000Z", i),
			Fields:      airtable.Fields{"Name": fmt.Sprintf("Patient %d", i)},
		})
	}
	env.at.tables["Patients"] = recs

	patients, err := env.svc.ListPatients(context.Background(), model.PatientFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, patients, 2)
	assert.Equal(t, "rec5", patients[0].ID)
	assert.Equal(t, "rec4", patients[1].ID)
}

func TestListPatientsFormula(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.ListPatients(context.Background(), model.PatientFilter{
		Status: model.PatientStatusScheduled,
		Query:  ` Ana "R" `,
		Limit:  5000,
	})
	require.NoError(t, err)

	calls := env.at.listCalls("Patients")
	require.Len(t, calls, 1)
	assert.Equal(t,
		`AND({Status} = "Scheduled", OR(SEARCH("ana \"r\"", LOWER({Name} & "")), SEARCH("ana \"r\"", LOWER({Email} & ""))))`,
		calls[0].FilterByFormula)
	assert.Zero(t, calls[0].MaxRecords)
}

func TestPatientFormula(t *testing.T) {
	assert.Empty(t, patientFormula(model.PatientFilter{Query: "   "}))
	assert.Equal(t, `{Status} = "New"`, patientFormula(model.PatientFilter{Status: model.PatientStatusNew}))
	assert.Equal(t,
		`OR(SEARCH("bo", LOWER({Name} & "")), SEARCH("bo", LOWER({Email} & "")))`,
		patientFormula(model.PatientFilter{Query: "BO"}))
}

func TestListPatientsInvalidStatus(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.ListPatients(context.Background(), model.PatientFilter{Status: "Lost"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, env.at.listCalls("Patients"))
}

func TestListPatientsUpstreamError(t *testing.T) {
	env := newTestEnv(t)
	env.at.listErr["Patients"] = airtable.ErrNotFound

	_, err := env.svc.ListPatients(context.Background(), model.PatientFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "portal: list patients")
}

func TestGetPatient(t *testing.T) {
	env := newTestEnv(t)

	p, err := env.svc.GetPatient(context.Background(), "recAna")
	require.NoError(t, err)
	assert.Equal(t, "Ana Rivera", p.Name)
	require.Len(t, p.Findings, 2)
	assert.Equal(t, "Fine Lines", p.Findings[0].Name)
	assert.InDelta(t, 80.0, p.Findings[0].Score, 0.001)
	assert.InDelta(t, 60.0, p.Findings[1].Score, 0.001)

	// Anonymous reads are not audited.
	assert.Empty(t, env.store.actions())
}

func TestGetPatientAuditsProvider(t *testing.T) {
	env := newTestEnv(t)
	ctx := WithProvider(context.Background(), "Dr. Rivera")

	_, err := env.svc.GetPatient(ctx, "recAna")
	require.NoError(t, err)

	require.Len(t, env.store.audit, 1)
	e := env.store.audit[0]
	assert.Equal(t, "Dr. Rivera", e.Provider)
	assert.Equal(t, model.AuditViewPatient, e.Action)
	assert.Equal(t, "recAna", e.Target)
	assert.Equal(t, testNow, e.CreatedAt)
}

func TestGetPatientNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.GetPatient(context.Background(), "recMissing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.svc.GetPatient(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreatePatient(t *testing.T) {
	env := newTestEnv(t)

	p, err := env.svc.CreatePatient(context.Background(), model.PatientInput{
		Name:     "  Cara Diaz ",
		Email:    "cara@example.com",
		Phone:    "555-0100",
		Age:      41,
		SkinType: "Combination",
		Concerns: []string{"Fine Lines", "Sun Spots"},
	})
	require.NoError(t, err)
	assert.Equal(t, "recNew001", p.ID)
	assert.Equal(t, "Cara Diaz", p.Name)
	assert.Equal(t, model.PatientStatusNew, p.Status)
	assert.Equal(t, 41, p.Age)
	assert.Equal(t, []string{"Fine Lines", "Sun Spots"}, p.Concerns)

	stored, err := env.at.Get(context.Background(), "Patients", "recNew001")
	require.NoError(t, err)
	assert.Equal(t, "Fine Lines, Sun Spots", stored.Fields["Concerns"])
	assert.Equal(t, "New", stored.Fields["Status"])
	assert.NotContains(t, stored.Fields, "Photo URL")
}

func TestCreatePatientValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		in   model.PatientInput
	}{
		{"missing name", model.PatientInput{Name: "  "}},
		{"bad email", model.PatientInput{Name: "A", Email: "not-an-email"}},
		{"negative age", model.PatientInput{Name: "A", Age: -1}},
		{"age too high", model.PatientInput{Name: "A", Age: 121}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.CreatePatient(context.Background(), tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Len(t, env.at.tables["Patients"], 2)
}

func TestUpdatePatient(t *testing.T) {
	env := newTestEnv(t)
	ctx := WithProvider(context.Background(), "Dr. Lee")

	status := model.PatientStatusTreated
	notes := "Follow up in 3 months"
	p, err := env.svc.UpdatePatient(ctx, "recAna", model.PatientUpdate{Status: &status, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, model.PatientStatusTreated, p.Status)
	assert.Equal(t, notes, p.Notes)
	assert.Equal(t, "Ana Rivera", p.Name)

	require.Len(t, env.store.audit, 1)
	assert.Equal(t, model.AuditUpdatePatient, env.store.audit[0].Action)
	assert.Equal(t, "Notes,Status", env.store.audit[0].Detail)
}

func TestUpdatePatientValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.UpdatePatient(ctx, "recAna", model.PatientUpdate{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	bad := model.PatientStatus("Lost")
	_, err = env.svc.UpdatePatient(ctx, "recAna", model.PatientUpdate{Status: &bad})
	assert.ErrorIs(t, err, ErrInvalidInput)

	empty := " "
	_, err = env.svc.UpdatePatient(ctx, "recAna", model.PatientUpdate{Name: &empty})
	assert.ErrorIs(t, err, ErrInvalidInput)

	name := "Someone"
	_, err = env.svc.UpdatePatient(ctx, "recMissing", model.PatientUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, env.at.updates)
}

func TestDeletePatient(t *testing.T) {
	env := newTestEnv(t)
	ctx := WithProvider(context.Background(), "Dr. Lee")

	require.NoError(t, env.svc.DeletePatient(ctx, "recBo"))
	assert.Len(t, env.at.tables["Patients"], 1)
	assert.Equal(t, []model.AuditAction{model.AuditDeletePatient}, env.store.actions())

	err := env.svc.DeletePatient(ctx, "recBo")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPatientFindings(t *testing.T) {
	env := newTestEnv(t)

	findings, err := env.svc.PatientFindings(context.Background(), "recAna")
	require.NoError(t, err)
	require.Len(t, findings, 2)

	// Redness carries a 1.5 factor: 0.6*1.5 = 0.9 of the range.
	assert.Equal(t, "Redness", findings[0].Name)
	assert.InDelta(t, 91.5, findings[0].DisplayScore, 0.001)
	assert.Equal(t, "Severe", findings[0].Level)
	assert.Equal(t, "Fine Lines", findings[1].Name)
	assert.InDelta(t, 88.0, findings[1].DisplayScore, 0.001)
}

func TestImportPatients(t *testing.T) {
	env := newTestEnv(t)
	inputs := []model.PatientInput{
		{Name: "Eve Stone", Email: "eve@example.com", Age: 29},
		{Name: "", Email: "nobody@example.com"},
		{Name: "Finn Hale", Email: "finn-at-example"},
		{Name: "Gia Moss"},
	}

	n, rowErrs, err := env.svc.ImportPatients(context.Background(), inputs, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, rowErrs, 2)
	assert.Equal(t, 1, rowErrs[0].Index)
	assert.Equal(t, 2, rowErrs[1].Index)
	assert.ErrorIs(t, rowErrs[1].Err, ErrInvalidInput)
	assert.Len(t, env.at.tables["Patients"], 2, "dry run writes nothing")

	n, rowErrs, err = env.svc.ImportPatients(context.Background(), inputs, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, rowErrs, 2)
	require.Len(t, env.at.tables["Patients"], 4)
	assert.Equal(t, "Gia Moss", env.at.tables["Patients"][3].Fields["Name"])
}
