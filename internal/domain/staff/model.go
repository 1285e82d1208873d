package staff

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/edtriage/triage/internal/platform/auth"
)

// Staff maps to the staff table.
type Staff struct {
	ID         uuid.UUID `db:"id" json:"id"`
	EmployeeID string    `db:"employee_id" json:"employee_id"`
	FullName   string    `db:"full_name" json:"full_name"`
	Role       string    `db:"role" json:"role"`
	Department string    `db:"department" json:"department"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

func (s Staff) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.EmployeeID, validation.Required, validation.Length(1, 50)),
		validation.Field(&s.FullName, validation.Required, validation.Length(1, 255)),
		validation.Field(&s.Role, validation.Required, validation.In(auth.RoleNurse, auth.RoleDoctor, auth.RoleAdmin)),
		validation.Field(&s.Department,
			validation.When(s.Role == auth.RoleDoctor, validation.Required),
			validation.Length(0, 100)),
	)
}

// Principal is the authenticated identity of this staff member.
func (s *Staff) Principal() auth.Principal {
	return auth.Principal{StaffID: s.ID, Role: s.Role, Name: s.FullName}
}
