package staff

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edtriage/triage/internal/domain/assignment"
	"github.com/edtriage/triage/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const staffCols = `id, employee_id, full_name, role, department, created_at`

func scanStaff(row pgx.Row) (*Staff, error) {
	var s Staff
	err := row.Scan(&s.ID, &s.EmployeeID, &s.FullName, &s.Role, &s.Department, &s.CreatedAt)
	if db.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repoPG) Create(ctx context.Context, s *Staff) error {
	s.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO staff (id, employee_id, full_name, role, department)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		s.ID, s.EmployeeID, s.FullName, s.Role, s.Department).Scan(&s.CreatedAt)
	if db.IsUniqueViolation(err, "staff_employee_id_key") {
		return ErrDuplicateEmployee
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Staff, error) {
	return scanStaff(r.conn(ctx).QueryRow(ctx, `SELECT `+staffCols+` FROM staff WHERE id = $1`, id))
}

func (r *repoPG) GetByEmployeeID(ctx context.Context, employeeID string) (*Staff, error) {
	return scanStaff(r.conn(ctx).QueryRow(ctx, `SELECT `+staffCols+` FROM staff WHERE employee_id = $1`, employeeID))
}

func (r *repoPG) ListDoctorLoads(ctx context.Context) ([]assignment.DoctorLoad, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT s.id, s.employee_id, s.full_name, s.department,
			(SELECT COUNT(*) FROM triage_case t WHERE t.assigned_doctor_id = s.id) +
			(SELECT COUNT(*) FROM emergency_case e WHERE e.doctor_id = s.id) AS load
		FROM staff s
		WHERE s.role = 'doctor'
		ORDER BY s.employee_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []assignment.DoctorLoad
	for rows.Next() {
		var d assignment.DoctorLoad
		if err := rows.Scan(&d.DoctorID, &d.EmployeeID, &d.FullName, &d.Department, &d.Load); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
