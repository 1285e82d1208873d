package staff

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/edtriage/triage/internal/domain/assignment"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register creates a nurse, doctor or admin account.
func (s *Service) Register(ctx context.Context, st *Staff) error {
	st.EmployeeID = strings.TrimSpace(st.EmployeeID)
	st.FullName = strings.TrimSpace(st.FullName)
	st.Role = strings.ToLower(strings.TrimSpace(st.Role))
	st.Department = strings.TrimSpace(st.Department)
	if err := st.Validate(); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, st); err != nil {
		return fmt.Errorf("create staff: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Staff, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByEmployeeID(ctx context.Context, employeeID string) (*Staff, error) {
	return s.repo.GetByEmployeeID(ctx, strings.TrimSpace(employeeID))
}

// ListDoctorLoads satisfies assignment.LoadSource.
func (s *Service) ListDoctorLoads(ctx context.Context) ([]assignment.DoctorLoad, error) {
	return s.repo.ListDoctorLoads(ctx)
}
