package model

import "time"

// PatientStatus is the provider-facing workflow state of a patient record.
type PatientStatus string

const (
	PatientStatusNew       PatientStatus = "New"
	PatientStatusContacted PatientStatus = "Contacted"
	PatientStatusScheduled PatientStatus = "Scheduled"
	PatientStatusTreated   PatientStatus = "Treated"
	PatientStatusArchived  PatientStatus = "Archived"
)

// Valid reports whether s is one of the known statuses.
func (s PatientStatus) Valid() bool {
	switch s {
	case PatientStatusNew, PatientStatusContacted, PatientStatusScheduled,
		PatientStatusTreated, PatientStatusArchived:
		return true
	}
	return false
}

// Patient is a patient record as stored in the Patients table.
type Patient struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email,omitempty"`
	Phone     string        `json:"phone,omitempty"`
	Age       int           `json:"age,omitempty"`
	SkinType  string        `json:"skin_type,omitempty"`
	Status    PatientStatus `json:"status"`
	PhotoURL  string        `json:"photo_url,omitempty"`
	Score     float64       `json:"score,omitempty"`
	Concerns  []string      `json:"concerns,omitempty"`
	Notes     string        `json:"notes,omitempty"`
	Findings  []Finding     `json:"findings,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// PatientInput is the questionnaire submitted by a prospective patient.
type PatientInput struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Phone    string   `json:"phone"`
	Age      int      `json:"age"`
	SkinType string   `json:"skin_type"`
	PhotoURL string   `json:"photo_url"`
	Concerns []string `json:"concerns"`
}

// PatientUpdate is a partial update; nil fields are left unchanged.
type PatientUpdate struct {
	Name     *string        `json:"name,omitempty"`
	Email    *string        `json:"email,omitempty"`
	Phone    *string        `json:"phone,omitempty"`
	Status   *PatientStatus `json:"status,omitempty"`
	Notes    *string        `json:"notes,omitempty"`
	PhotoURL *string        `json:"photo_url,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u PatientUpdate) Empty() bool {
	return u.Name == nil && u.Email == nil && u.Phone == nil &&
		u.Status == nil && u.Notes == nil && u.PhotoURL == nil
}

// PatientFilter narrows a patient listing.
type PatientFilter struct {
	Status PatientStatus
	Query  string
	Limit  int
}
