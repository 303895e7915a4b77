package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatientStatusValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status PatientStatus
		want   bool
	}{
		{PatientStatusNew, true},
		{PatientStatusContacted, true},
		{PatientStatusScheduled, true},
		{PatientStatusTreated, true},
		{PatientStatusArchived, true},
		{"new", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.status.Valid())
		})
	}
}

func TestPatientUpdateEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, PatientUpdate{}.Empty())

	notes := "called back"
	assert.False(t, PatientUpdate{Notes: &notes}.Empty())
}

func TestPatientUpdateDecodesPartial(t *testing.T) {
	t.Parallel()

	var u PatientUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"status":"Scheduled","notes":""}`), &u))

	require.NotNil(t, u.Status)
	assert.Equal(t, PatientStatusScheduled, *u.Status)
	require.NotNil(t, u.Notes)
	assert.Empty(t, *u.Notes)
	assert.Nil(t, u.Name)
}
