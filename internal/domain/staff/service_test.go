package staff

import (
	"context"
	"errors"
	"testing"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/edtriage/triage/internal/domain/assignment"
)

// -- Mock Repository --

type mockRepo struct {
	staff map[uuid.UUID]*Staff
	loads map[uuid.UUID]int
}

func newMockRepo() *mockRepo {
	return &mockRepo{staff: make(map[uuid.UUID]*Staff), loads: make(map[uuid.UUID]int)}
}

func (m *mockRepo) Create(_ context.Context, s *Staff) error {
	for _, existing := range m.staff {
		if existing.EmployeeID == s.EmployeeID {
			return ErrDuplicateEmployee
		}
	}
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	m.staff[s.ID] = s
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Staff, error) {
	s, ok := m.staff[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *mockRepo) GetByEmployeeID(_ context.Context, employeeID string) (*Staff, error) {
	for _, s := range m.staff {
		if s.EmployeeID == employeeID {
			return s, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) ListDoctorLoads(_ context.Context) ([]assignment.DoctorLoad, error) {
	var out []assignment.DoctorLoad
	for _, s := range m.staff {
		if s.Role != "doctor" {
			continue
		}
		out = append(out, assignment.DoctorLoad{
			DoctorID: s.ID, EmployeeID: s.EmployeeID, FullName: s.FullName,
			Department: s.Department, Load: m.loads[s.ID],
		})
	}
	return out, nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo), repo
}

func TestService_Register(t *testing.T) {
	svc, _ := newTestService()
	st := &Staff{EmployeeID: " D100 ", FullName: "Asha Rao", Role: "Doctor", Department: "Cardiology"}
	if err := svc.Register(context.Background(), st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if st.EmployeeID != "D100" || st.Role != "doctor" {
		t.Errorf("expected normalized fields, got %q %q", st.EmployeeID, st.Role)
	}
}

func TestService_Register_Validation(t *testing.T) {
	svc, _ := newTestService()
	cases := []*Staff{
		{FullName: "No Employee", Role: "nurse"},
		{EmployeeID: "N1", Role: "nurse"},
		{EmployeeID: "N1", FullName: "Bad Role", Role: "surgeon"},
		{EmployeeID: "D1", FullName: "No Dept", Role: "doctor"},
	}
	for _, st := range cases {
		err := svc.Register(context.Background(), st)
		var verrs validation.Errors
		if !errors.As(err, &verrs) {
			t.Errorf("%+v: expected validation error, got %v", st, err)
		}
	}
}

func TestService_Register_NurseWithoutDepartment(t *testing.T) {
	svc, _ := newTestService()
	if err := svc.Register(context.Background(), &Staff{EmployeeID: "N1", FullName: "Nina", Role: "nurse"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestService_Register_Duplicate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if err := svc.Register(ctx, &Staff{EmployeeID: "N1", FullName: "Nina", Role: "nurse"}); err != nil {
		t.Fatal(err)
	}
	err := svc.Register(ctx, &Staff{EmployeeID: "N1", FullName: "Other", Role: "nurse"})
	if !errors.Is(err, ErrDuplicateEmployee) {
		t.Fatalf("expected ErrDuplicateEmployee, got %v", err)
	}
}

func TestService_GetByEmployeeID(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	st := &Staff{EmployeeID: "A1", FullName: "Admin", Role: "admin"}
	if err := svc.Register(ctx, st); err != nil {
		t.Fatal(err)
	}
	got, err := svc.GetByEmployeeID(ctx, "A1 ")
	if err != nil || got.ID != st.ID {
		t.Fatalf("expected %s, got %v %v", st.ID, got, err)
	}
	if _, err := svc.GetByEmployeeID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_ListDoctorLoads_OnlyDoctors(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_ = svc.Register(ctx, &Staff{EmployeeID: "N1", FullName: "Nina", Role: "nurse"})
	_ = svc.Register(ctx, &Staff{EmployeeID: "D1", FullName: "Dev", Role: "doctor", Department: "Neurology"})
	loads, err := svc.ListDoctorLoads(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(loads) != 1 || loads[0].EmployeeID != "D1" {
		t.Errorf("unexpected loads %+v", loads)
	}
}
