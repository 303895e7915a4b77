package model

import "time"

// AuditAction names a provider action recorded in the audit log.
type AuditAction string

const (
	AuditLogin          AuditAction = "login"
	AuditViewPatient    AuditAction = "view_patient"
	AuditUpdatePatient  AuditAction = "update_patient"
	AuditDeletePatient  AuditAction = "delete_patient"
	AuditDeleteInterest AuditAction = "delete_interest"
)

// AuditEntry is one row of the provider audit log.
type AuditEntry struct {
	ID        string      `json:"id"`
	Provider  string      `json:"provider"`
	Action    AuditAction `json:"action"`
	Target    string      `json:"target,omitempty"`
	Detail    string      `json:"detail,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// AuditFilter narrows an audit log query. Zero values match everything.
type AuditFilter struct {
	Provider string
	Action   AuditAction
	Since    time.Time
	Limit    int
}
