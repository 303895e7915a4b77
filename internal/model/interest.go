package model

import "time"

// InterestItem records a patient's interest in a treatment.
type InterestItem struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patient_id"`
	Treatment string    `json:"treatment"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
