package cases

import (
	"time"

	"github.com/google/uuid"

	"github.com/edtriage/triage/internal/domain/patient"
	"github.com/edtriage/triage/internal/domain/risk"
)

// CaseType names the two mutually exclusive kinds of open case.
type CaseType string

const (
	CaseTriage    CaseType = "triage"
	CaseEmergency CaseType = "emergency"
)

// State is where a patient stands in the case workflow.
type State string

const (
	StateUnassigned  State = "unassigned"
	StateInTriage    State = "in_triage"
	StateInEmergency State = "in_emergency"
)

func (t CaseType) State() State {
	switch t {
	case CaseTriage:
		return StateInTriage
	case CaseEmergency:
		return StateInEmergency
	}
	return StateUnassigned
}

// Vitals are the measurements taken at triage.
type Vitals struct {
	SystolicBP  int     `db:"systolic_bp" json:"systolic_bp"`
	HeartRate   int     `db:"heart_rate" json:"heart_rate"`
	Temperature float64 `db:"temperature" json:"temperature"`
	Oxygen      int     `db:"oxygen" json:"oxygen"`
}

// TriageCase maps to the triage_case table.
type TriageCase struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	NurseID          uuid.UUID  `db:"nurse_id" json:"nurse_id"`
	AssignedDoctorID *uuid.UUID `db:"assigned_doctor_id" json:"assigned_doctor_id"`
	Vitals
	Symptoms              SymptomSet    `json:"symptoms"`
	PredictedRisk         string        `db:"predicted_risk" json:"predicted_risk"`
	RiskConfidence        float64       `db:"risk_confidence" json:"risk_confidence"`
	RecommendedDepartment string        `db:"recommended_department" json:"recommended_department"`
	DepartmentConfidence  float64       `db:"department_confidence" json:"department_confidence"`
	ContributingFactors   []risk.Factor `db:"contributing_factors" json:"contributing_factors"`
	CreatedAt             time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time     `db:"updated_at" json:"updated_at"`
}

// EmergencyCase maps to the emergency_case table. Emergencies are always
// assigned by the nurse, so doctor and department are mandatory.
type EmergencyCase struct {
	ID         uuid.UUID `db:"id" json:"id"`
	PatientID  uuid.UUID `db:"patient_id" json:"patient_id"`
	NurseID    uuid.UUID `db:"nurse_id" json:"nurse_id"`
	DoctorID   uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Department string    `db:"department" json:"department"`
	Symptoms   string    `db:"symptoms" json:"symptoms"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// CaseRef maps to the patient_case table: the one open case of a patient.
type CaseRef struct {
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Type      CaseType  `db:"case_type" json:"case_type"`
	CaseID    uuid.UUID `db:"case_id" json:"case_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PatientState is a patient's current workflow state and open case.
type PatientState struct {
	PatientID     uuid.UUID      `json:"patient_id"`
	State         State          `json:"state"`
	TriageCase    *TriageCase    `json:"triage_case,omitempty"`
	EmergencyCase *EmergencyCase `json:"emergency_case,omitempty"`
}

// PatientSummary is the patient identity shown on nurse worklists.
type PatientSummary struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Age      int       `json:"age"`
	Gender   string    `json:"gender"`
}

// PatientProfile is the patient record shown to the treating doctor.
type PatientProfile struct {
	ID            uuid.UUID `json:"id"`
	FullName      string    `json:"full_name"`
	Age           int       `json:"age"`
	Gender        string    `json:"gender"`
	BloodGroup    string    `json:"blood_group"`
	Allergies     string    `json:"allergies"`
	PastSurgeries string    `json:"past_surgeries"`
	patient.Comorbidities
}

func SummaryOf(p *patient.Patient) PatientSummary {
	return PatientSummary{ID: p.ID, FullName: p.FullName, Age: p.Age, Gender: p.Gender}
}

func ProfileOf(p *patient.Patient) PatientProfile {
	return PatientProfile{
		ID:            p.ID,
		FullName:      p.FullName,
		Age:           p.Age,
		Gender:        p.Gender,
		BloodGroup:    p.BloodGroup,
		Allergies:     p.Allergies,
		PastSurgeries: p.PastSurgeries,
		Comorbidities: p.Comorbidities,
	}
}

// TriageSummaryView is a triage case on the nurse dashboard.
type TriageSummaryView struct {
	*TriageCase
	Patient PatientSummary `json:"patient"`
}

// TriageView is a triage case with the full patient profile.
type TriageView struct {
	*TriageCase
	Patient PatientProfile `json:"patient"`
}

// EmergencyView is an emergency case with the full patient profile.
type EmergencyView struct {
	*EmergencyCase
	Patient PatientProfile `json:"patient"`
}

// DoctorDashboard lists every open case assigned to one doctor.
type DoctorDashboard struct {
	TriageCases    []TriageView    `json:"triage_requests"`
	EmergencyCases []EmergencyView `json:"emergency_requests"`
}
