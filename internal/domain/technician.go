package domain

import "time"

// SubjectType distinguishes authenticated principals.
type SubjectType string

const (
	SubjectTypeOperator   SubjectType = "operator"
	SubjectTypeTechnician SubjectType = "technician"
)

// Actor identifies who is performing an operation, along with the
// capabilities that guards consult at call time.
type Actor struct {
	Type SubjectType
	ID   string
	// OverrideTimeGate allows starting travel or diagnosis outside the
	// operating window.
	OverrideTimeGate bool
}

// Technician is a staff member: a field worker who executes repair jobs, or
// an office operator (Kind distinguishes them for auth purposes).
type Technician struct {
	ID           string
	Kind         SubjectType
	Name         string
	Email        string
	PasswordHash string
	Phone        string
	Active       bool
	// CanOverrideTimeGate lets the technician start travel or diagnosis
	// outside the operating window.
	CanOverrideTimeGate bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Position is one GPS sample from the raw position feed.
type Position struct {
	TechnicianID string
	TicketID     string
	Latitude     float64
	Longitude    float64
	SampledAt    time.Time
}
