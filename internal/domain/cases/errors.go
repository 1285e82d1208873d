package cases

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrStateConflict means the patient already holds an open case that
	// forbids the transition. Pre-check rejections and storage races both
	// match it.
	ErrStateConflict = errors.New("state conflict")
	ErrNotFound      = errors.New("not found")
	// ErrUnauthorized means the actor may not perform the transition on
	// this case.
	ErrUnauthorized = errors.New("not permitted")
)

// ConflictError reports an exclusivity violation. Raced is set when the
// pre-check passed and the storage uniqueness guard rejected the write.
type ConflictError struct {
	PatientID uuid.UUID
	Existing  CaseType
	Raced     bool
}

func (e *ConflictError) Error() string {
	if e.Existing == "" {
		return fmt.Sprintf("patient %s already has an open case", e.PatientID)
	}
	return fmt.Sprintf("patient %s already has an open %s case", e.PatientID, e.Existing)
}

func (e *ConflictError) Is(target error) bool { return target == ErrStateConflict }

func (e *ConflictError) ErrorCode() string { return "state_conflict" }

func notFound(what string, id uuid.UUID) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
}
