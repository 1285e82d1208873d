package cases

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/edtriage/triage/internal/domain/department"
)

var notNilUUID = validation.NotIn(uuid.Nil).Error("is required")

func (v Vitals) Validate() error {
	return validation.ValidateStruct(&v,
		validation.Field(&v.SystolicBP, validation.Min(0), validation.Max(300)),
		validation.Field(&v.HeartRate, validation.Min(0), validation.Max(300)),
		validation.Field(&v.Temperature, validation.Min(0.0), validation.Max(50.0)),
		validation.Field(&v.Oxygen, validation.Min(0), validation.Max(100)),
	)
}

// IntakeRequest is a nurse's triage submission. Re-submitting for a patient
// already in triage updates that case.
type IntakeRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	Vitals
	Symptoms SymptomSet `json:"symptoms"`
}

func (r IntakeRequest) Validate() error {
	if err := validation.ValidateStruct(&r,
		validation.Field(&r.PatientID, notNilUUID),
		validation.Field(&r.Symptoms),
	); err != nil {
		return err
	}
	return r.Vitals.Validate()
}

// EmergencyRequest is a nurse's manual emergency hand-off to a chosen doctor.
type EmergencyRequest struct {
	PatientID  uuid.UUID `json:"patient_id"`
	DoctorID   uuid.UUID `json:"doctor_id"`
	Department string    `json:"department"`
	Symptoms   string    `json:"symptoms"`
}

func (r EmergencyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PatientID, notNilUUID),
		validation.Field(&r.DoctorID, notNilUUID),
		validation.Field(&r.Department, validation.Required, validation.By(knownDepartment)),
		validation.Field(&r.Symptoms, validation.Length(0, 5000)),
	)
}

// ConvertRequest carries the vitals and symptoms taken when a doctor moves
// an emergency patient into triage.
type ConvertRequest struct {
	Vitals
	Symptoms SymptomSet `json:"symptoms"`
}

func (r ConvertRequest) Validate() error {
	if err := validation.ValidateStruct(&r, validation.Field(&r.Symptoms)); err != nil {
		return err
	}
	return r.Vitals.Validate()
}

type ExtractRequest struct {
	Text string `json:"text"`
}

func knownDepartment(value interface{}) error {
	s, _ := value.(string)
	if _, ok := department.Canonical(s); !ok {
		return validation.NewError("validation_unknown_department", "must be a known department")
	}
	return nil
}
