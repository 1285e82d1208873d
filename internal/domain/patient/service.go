package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SearchLimit caps name search results.
const SearchLimit = 10

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	p.FullName = strings.TrimSpace(p.FullName)
	p.Gender = NormalizeGender(p.Gender)
	p.BloodGroup = strings.ToUpper(strings.TrimSpace(p.BloodGroup))
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// Search returns up to SearchLimit patients whose name contains q. A blank
// query matches nothing.
func (s *Service) Search(ctx context.Context, q string) ([]*Patient, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []*Patient{}, nil
	}
	items, err := s.repo.SearchByName(ctx, q, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search patients: %w", err)
	}
	if items == nil {
		items = []*Patient{}
	}
	return items, nil
}

// UpdateHistory applies a partial history update and returns the result.
func (s *Service) UpdateHistory(ctx context.Context, id uuid.UUID, u HistoryUpdate) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Apply(p)
	if err := s.repo.UpdateHistory(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
