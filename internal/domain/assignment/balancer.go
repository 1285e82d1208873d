// Package assignment picks the least-loaded doctor for a department.
//
// Selection is advisory: load is read, a doctor is chosen and the caller
// persists the assignment later without holding a lock. Two concurrent
// intakes may pick the same doctor.
package assignment

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Match records which eligibility tier produced the candidate set.
type Match string

const (
	MatchExact     Match = "exact"
	MatchSubstring Match = "substring"
	// MatchFallback means no doctor works in the requested department and
	// every doctor was considered. The case may be misrouted.
	MatchFallback Match = "fallback"
	// MatchNone means there are no doctors at all.
	MatchNone Match = "none"
)

// DoctorLoad is a doctor and the number of open triage and emergency cases
// currently assigned to them.
type DoctorLoad struct {
	DoctorID   uuid.UUID `json:"doctor_id"`
	EmployeeID string    `json:"employee_id"`
	FullName   string    `json:"full_name"`
	Department string    `json:"department"`
	Load       int       `json:"patient_count"`
}

// Decision is the outcome of a selection. Doctor is nil only with MatchNone.
type Decision struct {
	Department string      `json:"department"`
	Doctor     *DoctorLoad `json:"doctor,omitempty"`
	Match      Match       `json:"match"`
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "_", " ")))
}

// Eligible filters doctors for department using progressively looser
// matching: case-insensitive equality, then substring after mapping
// underscores to spaces, then every doctor.
func Eligible(department string, doctors []DoctorLoad) ([]DoctorLoad, Match) {
	if len(doctors) == 0 {
		return nil, MatchNone
	}
	want := strings.TrimSpace(department)
	if want == "" {
		return doctors, MatchFallback
	}

	var exact []DoctorLoad
	for _, d := range doctors {
		if strings.EqualFold(strings.TrimSpace(d.Department), want) {
			exact = append(exact, d)
		}
	}
	if len(exact) > 0 {
		return exact, MatchExact
	}

	needle := normalize(want)
	var partial []DoctorLoad
	for _, d := range doctors {
		if strings.Contains(normalize(d.Department), needle) {
			partial = append(partial, d)
		}
	}
	if len(partial) > 0 {
		return partial, MatchSubstring
	}
	return doctors, MatchFallback
}

// Rank orders doctors least-loaded first. Equal loads are ordered by
// employee id, then by doctor id, so the result does not depend on storage
// order.
func Rank(doctors []DoctorLoad) []DoctorLoad {
	out := append([]DoctorLoad(nil), doctors...)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Load != b.Load {
			return a.Load < b.Load
		}
		if a.EmployeeID != b.EmployeeID {
			return a.EmployeeID < b.EmployeeID
		}
		return a.DoctorID.String() < b.DoctorID.String()
	})
	return out
}

// Select returns the least-loaded eligible doctor for department.
func Select(department string, doctors []DoctorLoad) Decision {
	eligible, match := Eligible(department, doctors)
	dec := Decision{Department: department, Match: match}
	if len(eligible) == 0 {
		return dec
	}
	best := Rank(eligible)[0]
	dec.Doctor = &best
	return dec
}

// LoadSource reports every doctor with their current load. Loads must be
// computed fresh for each call.
type LoadSource interface {
	ListDoctorLoads(ctx context.Context) ([]DoctorLoad, error)
}

type Balancer struct {
	src    LoadSource
	logger zerolog.Logger
}

func NewBalancer(src LoadSource, logger zerolog.Logger) *Balancer {
	return &Balancer{src: src, logger: logger}
}

// Assign reads current loads and selects a doctor for department.
func (b *Balancer) Assign(ctx context.Context, department string) (Decision, error) {
	doctors, err := b.src.ListDoctorLoads(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("list doctor loads: %w", err)
	}
	dec := Select(department, doctors)
	switch dec.Match {
	case MatchFallback:
		b.logger.Warn().
			Str("department", department).
			Str("doctor_id", dec.Doctor.DoctorID.String()).
			Str("doctor_department", dec.Doctor.Department).
			Msg("no doctor in department, assigning least-loaded doctor overall")
	case MatchNone:
		b.logger.Warn().Str("department", department).Msg("no doctors registered, case left unassigned")
	}
	return dec, nil
}

// Candidates lists the eligible doctors for department, least-loaded first.
func (b *Balancer) Candidates(ctx context.Context, department string) ([]DoctorLoad, Match, error) {
	doctors, err := b.src.ListDoctorLoads(ctx)
	if err != nil {
		return nil, MatchNone, fmt.Errorf("list doctor loads: %w", err)
	}
	eligible, match := Eligible(department, doctors)
	return Rank(eligible), match, nil
}
