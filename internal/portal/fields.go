package portal

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sells-group/medspa-portal/internal/model"
	"github.com/sells-group/medspa-portal/pkg/airtable"
)

// Airtable column spellings, tried in order.
var (
	patientNameKeys     = []string{"Name", "Patient Name", "name"}
	patientEmailKeys    = []string{"Email", "email"}
	patientPhoneKeys    = []string{"Phone", "Phone Number", "phone"}
	patientAgeKeys      = []string{"Age", "age"}
	patientSkinTypeKeys = []string{"Skin Type", "SkinType", "skin_type"}
	patientStatusKeys   = []string{"Status", "status"}
	patientPhotoKeys    = []string{"Photo URL", "PhotoURL", "photo_url"}
	patientFindingsKeys = []string{"Findings", "findings"}
	patientScoreKeys    = []string{"Analysis Score", "Overall Score", "overall_score"}
	patientConcernsKeys = []string{"Concerns", "Questionnaire", "concerns"}
	patientNotesKeys    = []string{"Notes", "Provider Notes", "notes"}

	findingNameKeys        = []string{"name", "Name", "finding", "Finding"}
	findingScoreKeys       = []string{"Severity Score", "SeverityScore", "severity_score", "Score", "score"}
	findingLevelKeys       = []string{"Severity Level", "SeverityLevel", "severity", "level"}
	findingAreaKeys        = []string{"Area", "Facial Area", "area"}
	findingConfidenceKeys  = []string{"Confidence", "confidence"}
	findingDescriptionKeys = []string{"Description", "description"}

	mappingFindingKeys = []string{"Finding", "Finding Name", "Name"}
	mappingFactorKeys  = []string{"Scaling Factor", "ScalingFactor", "scaling_factor"}
	mappingTypeKeys    = []string{"Scaling Type", "ScalingType", "scaling_type"}

	interestTreatmentKeys = []string{"Treatment", "Treatment Name", "treatment"}
	interestPatientKeys   = []string{"Patient", "Patients", "patient_id"}
)

func patientFromRecord(r airtable.Record) model.Patient {
	f := r.Fields
	p := model.Patient{
		ID:        r.ID,
		Name:      f.Text(patientNameKeys...),
		Email:     f.Text(patientEmailKeys...),
		Phone:     f.Text(patientPhoneKeys...),
		Age:       f.Int(0, patientAgeKeys...),
		SkinType:  f.Text(patientSkinTypeKeys...),
		Status:    model.PatientStatus(f.Text(patientStatusKeys...)),
		PhotoURL:  f.Text(patientPhotoKeys...),
		Score:     f.Float(0, patientScoreKeys...),
		Concerns:  f.Strings(patientConcernsKeys...),
		Notes:     f.Text(patientNotesKeys...),
		Findings:  decodeFindings(f),
		CreatedAt: parseCreatedTime(r.CreatedTime),
	}
	if p.Status == "" {
		p.Status = model.PatientStatusNew
	}
	if p.PhotoURL == "" {
		p.PhotoURL = f.AttachmentURL("Photos", "Photo")
	}
	return p
}

// decodeFindings accepts a multi-select of names, or JSON text holding an
// array of names or finding objects.
func decodeFindings(f airtable.Fields) []model.Finding {
	v, ok := f.Value(patientFindingsKeys...)
	if !ok {
		return nil
	}
	if text, isText := v.(string); isText {
		text = strings.TrimSpace(text)
		if strings.HasPrefix(text, "[") {
			var items []any
			if err := json.Unmarshal([]byte(text), &items); err == nil {
				return findingsFromItems(items)
			}
		}
	}
	if items, isList := v.([]any); isList {
		return findingsFromItems(items)
	}

	var out []model.Finding
	for _, name := range f.Strings(patientFindingsKeys...) {
		out = append(out, model.Finding{Name: name})
	}
	return out
}

func findingsFromItems(items []any) []model.Finding {
	var out []model.Finding
	for _, item := range items {
		switch t := item.(type) {
		case string:
			if name := strings.TrimSpace(t); name != "" {
				out = append(out, model.Finding{Name: name})
			}
		case map[string]any:
			if fd := findingFromFields(airtable.Fields(t)); fd.Name != "" {
				out = append(out, fd)
			}
		}
	}
	return out
}

func findingFromFields(f airtable.Fields) model.Finding {
	return model.Finding{
		Name:        f.Text(findingNameKeys...),
		Score:       f.Float(0, findingScoreKeys...),
		Level:       f.Text(findingLevelKeys...),
		Area:        f.Text(findingAreaKeys...),
		Confidence:  f.Float(0, findingConfidenceKeys...),
		Description: f.Text(findingDescriptionKeys...),
	}
}

// encodeFindings renders findings as the JSON text stored on the patient.
func encodeFindings(findings []model.Finding) string {
	type stored struct {
		Name       string  `json:"name"`
		Score      float64 `json:"Severity Score"`
		Level      string  `json:"Severity Level,omitempty"`
		Area       string  `json:"Area,omitempty"`
		Confidence float64 `json:"Confidence,omitempty"`
	}
	out := make([]stored, 0, len(findings))
	for _, f := range findings {
		out = append(out, stored{Name: f.Name, Score: f.Score, Level: f.Level, Area: f.Area, Confidence: f.Confidence})
	}
	data, _ := json.Marshal(out)
	return string(data)
}

func mappingFromRecord(r airtable.Record) model.SeverityMapping {
	f := r.Fields
	m := model.SeverityMapping{
		ID:            r.ID,
		Finding:       f.Text(mappingFindingKeys...),
		ScalingFactor: f.Float(0, mappingFactorKeys...),
		ScalingType:   strings.ToLower(f.Text(mappingTypeKeys...)),
		Notes:         f.Text("Notes", "notes"),
	}
	// Unset factor and type stay zero so the configured defaults apply.
	return m
}

func interestFromRecord(r airtable.Record) model.InterestItem {
	f := r.Fields
	it := model.InterestItem{
		ID:        r.ID,
		Treatment: f.Text(interestTreatmentKeys...),
		Notes:     f.Text("Notes", "notes"),
		CreatedAt: parseCreatedTime(r.CreatedTime),
	}
	if ids := f.Strings(interestPatientKeys...); len(ids) > 0 {
		it.PatientID = ids[0]
	}
	return it
}

func patientInputFields(in model.PatientInput) airtable.Fields {
	f := airtable.Fields{
		"Name":   in.Name,
		"Status": string(model.PatientStatusNew),
	}
	setText(f, "Email", in.Email)
	setText(f, "Phone", in.Phone)
	setText(f, "Skin Type", in.SkinType)
	setText(f, "Photo URL", in.PhotoURL)
	if in.Age > 0 {
		f["Age"] = in.Age
	}
	if len(in.Concerns) > 0 {
		f["Concerns"] = strings.Join(in.Concerns, ", ")
	}
	return f
}

func patientUpdateFields(u model.PatientUpdate) airtable.Fields {
	f := airtable.Fields{}
	if u.Name != nil {
		f["Name"] = strings.TrimSpace(*u.Name)
	}
	if u.Email != nil {
		f["Email"] = strings.TrimSpace(*u.Email)
	}
	if u.Phone != nil {
		f["Phone"] = strings.TrimSpace(*u.Phone)
	}
	if u.Status != nil {
		f["Status"] = string(*u.Status)
	}
	if u.Notes != nil {
		f["Notes"] = *u.Notes
	}
	if u.PhotoURL != nil {
		f["Photo URL"] = strings.TrimSpace(*u.PhotoURL)
	}
	return f
}

func setText(f airtable.Fields, key, v string) {
	if v = strings.TrimSpace(v); v != "" {
		f[key] = v
	}
}

func parseCreatedTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
