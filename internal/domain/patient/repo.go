package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("patient not found")

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// SearchByName matches a case-insensitive substring of the full name.
	SearchByName(ctx context.Context, q string, limit int) ([]*Patient, error)
	UpdateHistory(ctx context.Context, p *Patient) error
}
