package cases

import (
	"context"

	"github.com/edtriage/triage/internal/domain/department"
	"github.com/edtriage/triage/internal/domain/patient"
	"github.com/edtriage/triage/internal/domain/risk"
	"github.com/edtriage/triage/internal/platform/ml"
)

type RiskScorer interface {
	Score(ctx context.Context, record any, opts risk.Options) (*risk.Assessment, error)
}

type DepartmentClassifier interface {
	ClassifyRecord(ctx context.Context, record ml.ClinicalRecord, riskLabel string) (*department.Result, error)
}

// Assessment is the combined output of the risk and department stages.
type Assessment struct {
	Risk       *risk.Assessment
	Department *department.Result
}

// Assessor runs the clinical decision pipeline. The department stage takes
// the predicted risk label as an input feature, so the stages always run in
// sequence.
type Assessor struct {
	risk RiskScorer
	dept DepartmentClassifier
	opts risk.Options
}

func NewAssessor(r RiskScorer, d DepartmentClassifier, opts risk.Options) *Assessor {
	return &Assessor{risk: r, dept: d, opts: opts}
}

func (a *Assessor) Assess(ctx context.Context, record ml.ClinicalRecord) (*Assessment, error) {
	ra, err := a.risk.Score(ctx, record, a.opts)
	if err != nil {
		return nil, err
	}
	dr, err := a.dept.ClassifyRecord(ctx, record, ra.Label)
	if err != nil {
		return nil, err
	}
	return &Assessment{Risk: ra, Department: dr}, nil
}

// BuildRecord assembles the model input for one patient visit. Every
// catalog symptom is present, false unless flagged.
func BuildRecord(p *patient.Patient, v Vitals, s SymptomSet) ml.ClinicalRecord {
	rec := ml.ClinicalRecord{
		"Age":         p.Age,
		"Gender":      p.Gender,
		"Systolic_BP": v.SystolicBP,
		"Heart_Rate":  v.HeartRate,
		"Temperature": v.Temperature,
		"Oxygen":      v.Oxygen,

		"Diabetes":                 p.Diabetes,
		"Hypertension":             p.Hypertension,
		"Heart_Disease":            p.HeartDisease,
		"Asthma":                   p.Asthma,
		"Chronic_Kidney_Disease":   p.ChronicKidneyDisease,
		"Previous_Stroke":          p.PreviousStroke,
		"Smoker":                   p.Smoker,
		"Obese":                    p.Obese,
		"Previous_Heart_Attack":    p.PreviousHeartAttack,
		"Previous_Hospitalization": p.PreviousHospitalization,
	}
	for _, sym := range Catalog {
		rec[sym.Feature] = s[sym.Key]
	}
	return rec
}
