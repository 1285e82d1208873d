package cases

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists cases. Every write keeps patient_case in step with the
// case tables, and create methods report a uniqueness race on the patient as
// a *ConflictError with Raced set. Writes are expected to run inside
// TxRunner.InTx.
type Repository interface {
	// GetOpenCase returns the patient's open case, or ErrNotFound.
	GetOpenCase(ctx context.Context, patientID uuid.UUID) (*CaseRef, error)

	CreateTriageCase(ctx context.Context, t *TriageCase) error
	UpdateTriageCase(ctx context.Context, t *TriageCase) error
	GetTriageCase(ctx context.Context, id uuid.UUID) (*TriageCase, error)
	GetTriageCaseByPatient(ctx context.Context, patientID uuid.UUID) (*TriageCase, error)
	DeleteTriageCase(ctx context.Context, t *TriageCase) error
	ListTriageByNurse(ctx context.Context, nurseID uuid.UUID, limit, offset int) ([]*TriageCase, int, error)
	ListTriageByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*TriageCase, error)

	CreateEmergencyCase(ctx context.Context, e *EmergencyCase) error
	GetEmergencyCase(ctx context.Context, id uuid.UUID) (*EmergencyCase, error)
	DeleteEmergencyCase(ctx context.Context, e *EmergencyCase) error
	ListEmergencyByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*EmergencyCase, error)
}

// TxRunner runs fn in one transaction. Repository calls made with the ctx
// passed to fn join that transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
