// Package crew implements the crew records read path. Every read runs
// through the policy engine for module access, instance scope and field
// redaction before anything leaves the service layer.
package crew

import (
	"time"
)

// Fields subject to redaction rules and self-scoped read permissions.
const (
	FieldSalary       = "salary"
	FieldMedicalNotes = "medical_notes"
)

// Member is a crew record as stored.
type Member struct {
	ID           string     `json:"id"`
	CompanyID    int64      `json:"company_id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Rank         string     `json:"rank"`
	VesselID     string     `json:"vessel_id"`
	Department   string     `json:"department"`
	Nationality  string     `json:"nationality"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	NextOfKin    string     `json:"next_of_kin"`
	Salary       *int64     `json:"salary,omitempty"`
	MedicalNotes *string    `json:"medical_notes,omitempty"`
	SignOnDate   *time.Time `json:"sign_on_date,omitempty"`
	SignOffDate  *time.Time `json:"sign_off_date,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// OwnProfileInput is the limited set of fields a crew member may edit on
// their own record.
type OwnProfileInput struct {
	Phone     string `json:"phone" validate:"max=32"`
	Email     string `json:"email" validate:"omitempty,email"`
	NextOfKin string `json:"next_of_kin" validate:"max=256"`
}

// ListFilter narrows a crew listing.
type ListFilter struct {
	VesselID   string
	Department string
	RankLike   string
}
