package airtable

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeFields(t *testing.T, raw string) Fields {
	t.Helper()
	var f Fields
	require.NoError(t, json.Unmarshal([]byte(raw), &f))
	return f
}

func TestFields_FallbackSpellings(t *testing.T) {
	f := decodeFields(t, `{"SeverityScore": 72, "severity": "Moderate", "Facial Area": "Forehead"}`)

	assert.InDelta(t, 72, f.Float(0, "Severity Score", "SeverityScore", "severity_score"), 0.001)
	assert.Equal(t, "Moderate", f.Text("Severity Level", "SeverityLevel", "severity"))
	assert.Equal(t, "Forehead", f.Text("Area", "Facial Area", "area"))
	assert.Equal(t, "", f.Text("Missing"))
	assert.InDelta(t, 1.0, f.Float(1.0, "Scaling Factor"), 0.001)
}

func TestFields_FirstPresentWins(t *testing.T) {
	f := Fields{"Name": "Ana", "name": "ignored"}
	assert.Equal(t, "Ana", f.Text("Name", "name"))
	assert.True(t, f.Has("Missing", "name"))
	assert.False(t, f.Has("Missing"))
}

func TestFields_TextConversions(t *testing.T) {
	f := decodeFields(t, `{"Age": 34, "VIP": true, "Provider": [" Dr. Lee "], "Owner": {"id": "usr1", "name": "Kim"}}`)
	assert.Equal(t, "34", f.Text("Age"))
	assert.Equal(t, "true", f.Text("VIP"))
	assert.Equal(t, "Dr. Lee", f.Text("Provider"))
	assert.Equal(t, "Kim", f.Text("Owner"))
}

func TestFields_Float(t *testing.T) {
	f := decodeFields(t, `{"a": "81.5", "b": "40%", "c": [12], "d": "n/a"}`)
	assert.InDelta(t, 81.5, f.Float(0, "a"), 0.001)
	assert.InDelta(t, 40, f.Float(0, "b"), 0.001)
	assert.InDelta(t, 12, f.Float(0, "c"), 0.001)
	assert.InDelta(t, -1, f.Float(-1, "d"), 0.001)
	assert.Equal(t, 81, f.Int(0, "a"))
}

func TestFields_Strings(t *testing.T) {
	f := decodeFields(t, `{"Findings": ["Forehead Lines", "", "Crow's Feet"], "Concerns": "volume loss, dark circles ,", "Patients": ["recA"]}`)
	assert.Equal(t, []string{"Forehead Lines", "Crow's Feet"}, f.Strings("Findings"))
	assert.Equal(t, []string{"volume loss", "dark circles"}, f.Strings("Concerns"))
	assert.Equal(t, []string{"recA"}, f.Strings("Patient", "Patients"))
	assert.Nil(t, f.Strings("Nope"))
}

func TestFields_Bool(t *testing.T) {
	f := Fields{"Consent": true, "Text": "true", "Bad": "yes please"}
	assert.True(t, f.Bool("Consent"))
	assert.True(t, f.Bool("Text"))
	assert.False(t, f.Bool("Bad"))
	assert.False(t, f.Bool("Missing"))
}

func TestFields_Attachments(t *testing.T) {
	f := decodeFields(t, `{"Photos": [{"id": "att1", "url": "https://dl.airtable.com/front.jpg", "filename": "front.jpg", "type": "image/jpeg"}]}`)
	atts := f.Attachments("Photos")
	require.Len(t, atts, 1)
	assert.Equal(t, "front.jpg", atts[0].Filename)
	assert.Equal(t, "https://dl.airtable.com/front.jpg", f.AttachmentURL("Photo", "Photos"))
	assert.Equal(t, "", Fields{"Photos": "not-an-array"}.AttachmentURL("Photos"))
}
