// Package cases is the patient case state machine. A patient is unassigned,
// in triage or in emergency, never both. Every transition checks the
// patient's open case first and relies on the patient_case uniqueness guard
// when two requests race past that check.
package cases

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/edtriage/triage/internal/domain/assignment"
	"github.com/edtriage/triage/internal/domain/department"
	"github.com/edtriage/triage/internal/domain/patient"
	"github.com/edtriage/triage/internal/domain/risk"
	"github.com/edtriage/triage/internal/domain/staff"
	"github.com/edtriage/triage/internal/platform/auth"
	"github.com/edtriage/triage/pkg/pagination"
)

type PatientLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type StaffLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*staff.Staff, error)
}

type Assigner interface {
	Assign(ctx context.Context, department string) (assignment.Decision, error)
}

type Service struct {
	repo     Repository
	tx       TxRunner
	patients PatientLookup
	staff    StaffLookup
	assessor *Assessor
	assigner Assigner
	logger   zerolog.Logger
}

func NewService(repo Repository, tx TxRunner, patients PatientLookup, staffLookup StaffLookup,
	assessor *Assessor, assigner Assigner, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		tx:       tx,
		patients: patients,
		staff:    staffLookup,
		assessor: assessor,
		assigner: assigner,
		logger:   logger,
	}
}

// IntakeResult is the outcome of a triage submission.
type IntakeResult struct {
	Case                 *TriageCase      `json:"case"`
	Created              bool             `json:"created"`
	RiskLabel            string           `json:"risk_label"`
	RiskConfidence       float64          `json:"risk_confidence"`
	ContributingFactors  []risk.Factor    `json:"contributing_factors"`
	DepartmentLabel      string           `json:"department_label"`
	DepartmentConfidence float64          `json:"department_confidence"`
	AssignedDoctorID     *uuid.UUID       `json:"assigned_doctor_id"`
	AssignmentMatch      assignment.Match `json:"assignment_match"`
}

func (s *Service) getPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, err := s.patients.Get(ctx, id)
	if errors.Is(err, patient.ErrNotFound) {
		return nil, notFound("patient", id)
	}
	return p, err
}

// openCase returns the patient's open case, or nil when unassigned.
func (s *Service) openCase(ctx context.Context, patientID uuid.UUID) (*CaseRef, error) {
	ref, err := s.repo.GetOpenCase(ctx, patientID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return ref, err
}

// SubmitTriage scores the patient, recommends a department, assigns the
// least-loaded doctor and stores the triage case. A patient already in
// triage has that case updated in place; a patient in emergency is rejected.
func (s *Service) SubmitTriage(ctx context.Context, actor auth.Principal, req IntakeRequest) (*IntakeResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p, err := s.getPatient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	ref, err := s.openCase(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if ref != nil && ref.Type != CaseTriage {
		return nil, &ConflictError{PatientID: p.ID, Existing: ref.Type}
	}

	a, err := s.assessor.Assess(ctx, BuildRecord(p, req.Vitals, req.Symptoms))
	if err != nil {
		return nil, err
	}
	dec, err := s.assigner.Assign(ctx, a.Department.Label)
	if err != nil {
		return nil, err
	}

	t := &TriageCase{
		PatientID:             p.ID,
		NurseID:               actor.StaffID,
		Vitals:                req.Vitals,
		Symptoms:              req.Symptoms,
		PredictedRisk:         a.Risk.Label,
		RiskConfidence:        a.Risk.Confidence,
		RecommendedDepartment: a.Department.Label,
		DepartmentConfidence:  a.Department.Confidence,
		ContributingFactors:   a.Risk.ContributingFactors,
	}
	if dec.Doctor != nil {
		id := dec.Doctor.DoctorID
		t.AssignedDoctorID = &id
	}

	created, err := s.storeTriage(ctx, t)
	var ce *ConflictError
	if errors.As(err, &ce) && ce.Raced && ce.Existing == CaseTriage {
		// A concurrent intake for the same patient committed first; this one
		// becomes an update of that case.
		t.ID = uuid.Nil
		created, err = s.storeTriage(ctx, t)
	}
	if err != nil {
		return nil, fmt.Errorf("store triage case: %w", err)
	}

	s.logger.Info().
		Str("patient_id", p.ID.String()).
		Str("case_id", t.ID.String()).
		Str("actor_id", actor.StaffID.String()).
		Bool("created", created).
		Str("risk", t.PredictedRisk).
		Str("department", t.RecommendedDepartment).
		Str("assignment_match", string(dec.Match)).
		Msg("triage case stored")

	return &IntakeResult{
		Case:                 t,
		Created:              created,
		RiskLabel:            a.Risk.Label,
		RiskConfidence:       a.Risk.Confidence,
		ContributingFactors:  a.Risk.ContributingFactors,
		DepartmentLabel:      a.Department.Label,
		DepartmentConfidence: a.Department.Confidence,
		AssignedDoctorID:     t.AssignedDoctorID,
		AssignmentMatch:      dec.Match,
	}, nil
}

// storeTriage creates the patient's triage case, or updates it in place when
// one exists. A doctor already assigned is kept if t has none.
func (s *Service) storeTriage(ctx context.Context, t *TriageCase) (bool, error) {
	created := false
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetTriageCaseByPatient(ctx, t.PatientID)
		switch {
		case errors.Is(err, ErrNotFound):
			created = true
			return s.repo.CreateTriageCase(ctx, t)
		case err != nil:
			return err
		}
		created = false
		t.ID = existing.ID
		if t.AssignedDoctorID == nil {
			t.AssignedDoctorID = existing.AssignedDoctorID
		}
		return s.repo.UpdateTriageCase(ctx, t)
	})
	return created, err
}

// CreateEmergency moves an unassigned patient straight to a nurse-chosen
// doctor, bypassing the classifiers.
func (s *Service) CreateEmergency(ctx context.Context, actor auth.Principal, req EmergencyRequest) (*EmergencyCase, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	dept, ok := department.Canonical(req.Department)
	if !ok {
		return nil, validation.Errors{"department": fmt.Errorf("unknown department %q", req.Department)}
	}
	p, err := s.getPatient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	ref, err := s.openCase(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if ref != nil {
		return nil, &ConflictError{PatientID: p.ID, Existing: ref.Type}
	}
	doc, err := s.staff.Get(ctx, req.DoctorID)
	if errors.Is(err, staff.ErrNotFound) || (err == nil && doc.Role != auth.RoleDoctor) {
		return nil, notFound("doctor", req.DoctorID)
	}
	if err != nil {
		return nil, err
	}

	e := &EmergencyCase{
		PatientID:  p.ID,
		NurseID:    actor.StaffID,
		DoctorID:   doc.ID,
		Department: dept,
		Symptoms:   req.Symptoms,
	}
	if err := s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.repo.CreateEmergencyCase(ctx, e)
	}); err != nil {
		return nil, fmt.Errorf("store emergency case: %w", err)
	}

	s.logger.Info().
		Str("patient_id", p.ID.String()).
		Str("case_id", e.ID.String()).
		Str("actor_id", actor.StaffID.String()).
		Str("doctor_id", doc.ID.String()).
		Str("department", dept).
		Msg("emergency case created")
	return e, nil
}

// Convert replaces an emergency case with a freshly scored triage case
// assigned to the converting doctor. Scoring happens before any write; the
// delete and create share one transaction, so a failure leaves the
// emergency case in place.
func (s *Service) Convert(ctx context.Context, actor auth.Principal, emergencyID uuid.UUID, req ConvertRequest) (*TriageView, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	e, err := s.repo.GetEmergencyCase(ctx, emergencyID)
	if errors.Is(err, ErrNotFound) {
		return nil, notFound("emergency case", emergencyID)
	}
	if err != nil {
		return nil, err
	}
	if e.DoctorID != actor.StaffID {
		return nil, fmt.Errorf("%w: emergency case %s is assigned to another doctor", ErrUnauthorized, e.ID)
	}
	p, err := s.getPatient(ctx, e.PatientID)
	if err != nil {
		return nil, err
	}

	a, err := s.assessor.Assess(ctx, BuildRecord(p, req.Vitals, req.Symptoms))
	if err != nil {
		return nil, err
	}

	doctorID := actor.StaffID
	t := &TriageCase{
		PatientID:             p.ID,
		NurseID:               e.NurseID,
		AssignedDoctorID:      &doctorID,
		Vitals:                req.Vitals,
		Symptoms:              req.Symptoms,
		PredictedRisk:         a.Risk.Label,
		RiskConfidence:        a.Risk.Confidence,
		RecommendedDepartment: a.Department.Label,
		DepartmentConfidence:  a.Department.Confidence,
		ContributingFactors:   a.Risk.ContributingFactors,
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.DeleteEmergencyCase(ctx, e); err != nil {
			return err
		}
		return s.repo.CreateTriageCase(ctx, t)
	})
	if err != nil {
		return nil, fmt.Errorf("convert emergency case: %w", err)
	}

	s.logger.Info().
		Str("patient_id", p.ID.String()).
		Str("emergency_case_id", e.ID.String()).
		Str("case_id", t.ID.String()).
		Str("actor_id", actor.StaffID.String()).
		Msg("emergency case converted to triage")
	return &TriageView{TriageCase: t, Patient: ProfileOf(p)}, nil
}

// Resolve closes a triage case. Only the assigned doctor may resolve it.
func (s *Service) Resolve(ctx context.Context, actor auth.Principal, triageID uuid.UUID) error {
	t, err := s.repo.GetTriageCase(ctx, triageID)
	if errors.Is(err, ErrNotFound) {
		return notFound("triage case", triageID)
	}
	if err != nil {
		return err
	}
	if t.AssignedDoctorID == nil || *t.AssignedDoctorID != actor.StaffID {
		return fmt.Errorf("%w: triage case %s is not assigned to you", ErrUnauthorized, t.ID)
	}
	if err := s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.repo.DeleteTriageCase(ctx, t)
	}); err != nil {
		return fmt.Errorf("resolve triage case: %w", err)
	}

	s.logger.Info().
		Str("patient_id", t.PatientID.String()).
		Str("case_id", t.ID.String()).
		Str("actor_id", actor.StaffID.String()).
		Msg("triage case resolved")
	return nil
}

// State reports the patient's workflow state and open case.
func (s *Service) State(ctx context.Context, patientID uuid.UUID) (*PatientState, error) {
	p, err := s.getPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	st := &PatientState{PatientID: p.ID, State: StateUnassigned}
	ref, err := s.openCase(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return st, nil
	}
	st.State = ref.Type.State()
	switch ref.Type {
	case CaseTriage:
		st.TriageCase, err = s.repo.GetTriageCase(ctx, ref.CaseID)
	case CaseEmergency:
		st.EmergencyCase, err = s.repo.GetEmergencyCase(ctx, ref.CaseID)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// profiles caches patient lookups for one dashboard build.
type profiles struct {
	s    *Service
	seen map[uuid.UUID]*patient.Patient
}

func (pc *profiles) get(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	if p, ok := pc.seen[id]; ok {
		return p, nil
	}
	p, err := pc.s.getPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	pc.seen[id] = p
	return p, nil
}

func (s *Service) newProfiles() *profiles {
	return &profiles{s: s, seen: make(map[uuid.UUID]*patient.Patient)}
}

// NurseDashboard lists the triage cases submitted by a nurse, newest first.
func (s *Service) NurseDashboard(ctx context.Context, nurseID uuid.UUID, pg pagination.Params) (*pagination.Response, error) {
	items, total, err := s.repo.ListTriageByNurse(ctx, nurseID, pg.Limit, pg.Offset)
	if err != nil {
		return nil, err
	}
	pc := s.newProfiles()
	views := make([]TriageSummaryView, 0, len(items))
	for _, t := range items {
		p, err := pc.get(ctx, t.PatientID)
		if err != nil {
			return nil, err
		}
		views = append(views, TriageSummaryView{TriageCase: t, Patient: SummaryOf(p)})
	}
	return pagination.NewResponse(views, total, pg), nil
}

// DoctorDashboard lists every open case assigned to a doctor with the full
// patient profile.
func (s *Service) DoctorDashboard(ctx context.Context, doctorID uuid.UUID) (*DoctorDashboard, error) {
	triage, err := s.repo.ListTriageByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	emergencies, err := s.repo.ListEmergencyByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	pc := s.newProfiles()
	out := &DoctorDashboard{
		TriageCases:    make([]TriageView, 0, len(triage)),
		EmergencyCases: make([]EmergencyView, 0, len(emergencies)),
	}
	for _, t := range triage {
		p, err := pc.get(ctx, t.PatientID)
		if err != nil {
			return nil, err
		}
		out.TriageCases = append(out.TriageCases, TriageView{TriageCase: t, Patient: ProfileOf(p)})
	}
	for _, e := range emergencies {
		p, err := pc.get(ctx, e.PatientID)
		if err != nil {
			return nil, err
		}
		out.EmergencyCases = append(out.EmergencyCases, EmergencyView{EmergencyCase: e, Patient: ProfileOf(p)})
	}
	return out, nil
}
