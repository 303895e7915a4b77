package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/medspa-portal/internal/config"
	"github.com/sells-group/medspa-portal/internal/fetcher"
)

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patients.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func importTestConfig() *config.Config {
	return &config.Config{Severity: config.SeverityConfig{UIMin: 60, UIMax: 95, ScalingType: "linear"}}
}

func TestImportCmd_DryRun(t *testing.T) {
	cfg = importTestConfig()
	importDryRun = true
	t.Cleanup(func() { importDryRun = false })

	path := writeCSV(t, "Name,Email,Age,Concerns\n"+
		"Ana Ruiz,ana@example.com,34,Fine Lines; Redness\n"+
		"Bo Chen,not-an-email,41,\n"+
		",,,\n"+
		"Cy Park,,29,Acne Scars\n")

	var out bytes.Buffer
	importCmd.SetOut(&out)
	importCmd.SetContext(context.Background())
	t.Cleanup(func() { importCmd.SetOut(nil) })

	require.NoError(t, importCmd.RunE(importCmd, []string{path}))
	assert.Equal(t, "would create 2 patients, skipped 1 of 3 records\n", out.String())
}

func TestImportCmd_RequiresAirtable(t *testing.T) {
	cfg = importTestConfig()
	importDryRun = false
	importCmd.SetContext(context.Background())

	err := importCmd.RunE(importCmd, []string{"patients.csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "airtable token and base id are required")
}

func TestImportCmd_UnsupportedFile(t *testing.T) {
	cfg = importTestConfig()
	importDryRun = true
	t.Cleanup(func() { importDryRun = false })
	importCmd.SetContext(context.Background())

	err := importCmd.RunE(importCmd, []string{"patients.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestPatientInputs(t *testing.T) {
	tbl := &fetcher.Table{
		Header: []string{"First Name", "Last Name", "E-mail", "Email", "Mobile", "Age", "Skin Type", "Questionnaire"},
		Rows: [][]string{
			{"Ana", "Ruiz", "", "ana@example.com", "555-0100", "34", "III", "Fine Lines, Redness;Dullness"},
			{"Bo", "", "", "", "", "forty", "", ""},
		},
	}

	inputs := patientInputs(tbl.Records())
	require.Len(t, inputs, 2)

	assert.Equal(t, "Ana Ruiz", inputs[0].Name)
	assert.Equal(t, "ana@example.com", inputs[0].Email)
	assert.Equal(t, "555-0100", inputs[0].Phone)
	assert.Equal(t, 34, inputs[0].Age)
	assert.Equal(t, "III", inputs[0].SkinType)
	assert.Equal(t, []string{"Fine Lines", "Redness", "Dullness"}, inputs[0].Concerns)

	assert.Equal(t, "Bo", inputs[1].Name)
	assert.Equal(t, -1, inputs[1].Age)
	assert.Empty(t, inputs[1].Concerns)
}
