package staff

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/edtriage/triage/internal/domain/assignment"
)

var (
	ErrNotFound          = errors.New("staff member not found")
	ErrDuplicateEmployee = errors.New("employee id already registered")
)

type Repository interface {
	Create(ctx context.Context, s *Staff) error
	GetByID(ctx context.Context, id uuid.UUID) (*Staff, error)
	GetByEmployeeID(ctx context.Context, employeeID string) (*Staff, error)
	// ListDoctorLoads returns every doctor with the count of open triage and
	// emergency cases assigned to them, computed at query time.
	ListDoctorLoads(ctx context.Context) ([]assignment.DoctorLoad, error)
}
