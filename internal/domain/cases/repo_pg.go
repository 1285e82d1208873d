package cases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

// tx joins the caller's transaction, or starts one, so that a case row and
// its patient_case row are always written together.
func (r *repoPG) tx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.InTx(ctx, r.pool, fn)
}

var symptomKeys = func() []string {
	keys := make([]string, len(Catalog))
	for i, s := range Catalog {
		keys[i] = s.Key
	}
	return keys
}()

var triageCols = `id, patient_id, nurse_id, assigned_doctor_id,
	systolic_bp, heart_rate, temperature, oxygen,
	predicted_risk, risk_confidence, recommended_department, department_confidence,
	contributing_factors, created_at, updated_at, ` + strings.Join(symptomKeys, ", ")

func scanTriage(row pgx.Row) (*TriageCase, error) {
	var t TriageCase
	var factors []byte
	flags := make([]bool, len(Catalog))
	dest := []interface{}{
		&t.ID, &t.PatientID, &t.NurseID, &t.AssignedDoctorID,
		&t.SystolicBP, &t.HeartRate, &t.Temperature, &t.Oxygen,
		&t.PredictedRisk, &t.RiskConfidence, &t.RecommendedDepartment, &t.DepartmentConfidence,
		&factors, &t.CreatedAt, &t.UpdatedAt,
	}
	for i := range flags {
		dest = append(dest, &flags[i])
	}
	if err := row.Scan(dest...); err != nil {
		if db.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(factors, &t.ContributingFactors); err != nil {
		return nil, fmt.Errorf("decode contributing factors: %w", err)
	}
	t.Symptoms = SymptomSetFromFlags(flags)
	return &t, nil
}

func (r *repoPG) collectTriage(rows pgx.Rows) ([]*TriageCase, error) {
	defer rows.Close()
	var items []*TriageCase
	for rows.Next() {
		t, err := scanTriage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (r *repoPG) GetOpenCase(ctx context.Context, patientID uuid.UUID) (*CaseRef, error) {
	var ref CaseRef
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT patient_id, case_type, case_id, created_at FROM patient_case WHERE patient_id = $1`,
		patientID).Scan(&ref.PatientID, &ref.Type, &ref.CaseID, &ref.CreatedAt)
	if db.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// claim inserts the patient_case guard row. ON CONFLICT waits for a
// concurrent claimant to commit, so the follow-up read names the case type
// that won without aborting the caller's transaction.
func (r *repoPG) claim(ctx context.Context, patientID uuid.UUID, typ CaseType, caseID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_case (patient_id, case_type, case_id) VALUES ($1, $2, $3)
		ON CONFLICT (patient_id) DO NOTHING`,
		patientID, typ, caseID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var existing string
	err = r.conn(ctx).QueryRow(ctx, `SELECT case_type FROM patient_case WHERE patient_id = $1`, patientID).Scan(&existing)
	if err != nil && !db.IsNotFound(err) {
		return err
	}
	return &ConflictError{PatientID: patientID, Existing: CaseType(existing), Raced: true}
}

func (r *repoPG) release(ctx context.Context, patientID, caseID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_case WHERE patient_id = $1 AND case_id = $2`, patientID, caseID)
	return err
}

func triageArgs(t *TriageCase) ([]interface{}, error) {
	raw := []byte("[]")
	if len(t.ContributingFactors) > 0 {
		var err error
		if raw, err = json.Marshal(t.ContributingFactors); err != nil {
			return nil, err
		}
	}
	args := []interface{}{
		t.ID, t.PatientID, t.NurseID, t.AssignedDoctorID,
		t.SystolicBP, t.HeartRate, t.Temperature, t.Oxygen,
		t.PredictedRisk, t.RiskConfidence, t.RecommendedDepartment, t.DepartmentConfidence,
		raw,
	}
	for _, f := range t.Symptoms.Flags() {
		args = append(args, f)
	}
	return args, nil
}

var (
	triageWriteCols = `id, patient_id, nurse_id, assigned_doctor_id,
		systolic_bp, heart_rate, temperature, oxygen,
		predicted_risk, risk_confidence, recommended_department, department_confidence,
		contributing_factors, ` + strings.Join(symptomKeys, ", ")
	triageWriteCount = 13 + len(symptomKeys)
)

func placeholders(from, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ps, ", ")
}

func (r *repoPG) CreateTriageCase(ctx context.Context, t *TriageCase) error {
	t.ID = uuid.New()
	args, err := triageArgs(t)
	if err != nil {
		return err
	}
	return r.tx(ctx, func(ctx context.Context) error {
		if err := r.claim(ctx, t.PatientID, CaseTriage, t.ID); err != nil {
			return err
		}
		err := r.conn(ctx).QueryRow(ctx,
			`INSERT INTO triage_case (`+triageWriteCols+`) VALUES (`+placeholders(1, triageWriteCount)+`)
			RETURNING created_at, updated_at`, args...).Scan(&t.CreatedAt, &t.UpdatedAt)
		if db.IsUniqueViolation(err, "") {
			return &ConflictError{PatientID: t.PatientID, Existing: CaseTriage, Raced: true}
		}
		return err
	})
}

func (r *repoPG) UpdateTriageCase(ctx context.Context, t *TriageCase) error {
	args, err := triageArgs(t)
	if err != nil {
		return err
	}
	sets := []string{
		"nurse_id=$3", "assigned_doctor_id=$4",
		"systolic_bp=$5", "heart_rate=$6", "temperature=$7", "oxygen=$8",
		"predicted_risk=$9", "risk_confidence=$10", "recommended_department=$11", "department_confidence=$12",
		"contributing_factors=$13",
	}
	for i, k := range symptomKeys {
		sets = append(sets, fmt.Sprintf("%s=$%d", k, 14+i))
	}
	err = r.conn(ctx).QueryRow(ctx,
		`UPDATE triage_case SET `+strings.Join(sets, ", ")+`, updated_at=NOW()
		WHERE id = $1 AND patient_id = $2
		RETURNING created_at, updated_at`, args...).Scan(&t.CreatedAt, &t.UpdatedAt)
	if db.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) GetTriageCase(ctx context.Context, id uuid.UUID) (*TriageCase, error) {
	return scanTriage(r.conn(ctx).QueryRow(ctx, `SELECT `+triageCols+` FROM triage_case WHERE id = $1`, id))
}

func (r *repoPG) GetTriageCaseByPatient(ctx context.Context, patientID uuid.UUID) (*TriageCase, error) {
	return scanTriage(r.conn(ctx).QueryRow(ctx, `SELECT `+triageCols+` FROM triage_case WHERE patient_id = $1`, patientID))
}

func (r *repoPG) DeleteTriageCase(ctx context.Context, t *TriageCase) error {
	return r.tx(ctx, func(ctx context.Context) error {
		if err := r.release(ctx, t.PatientID, t.ID); err != nil {
			return err
		}
		tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM triage_case WHERE id = $1`, t.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *repoPG) ListTriageByNurse(ctx context.Context, nurseID uuid.UUID, limit, offset int) ([]*TriageCase, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM triage_case WHERE nurse_id = $1`, nurseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+triageCols+` FROM triage_case
		WHERE nurse_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, nurseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.collectTriage(rows)
	return items, total, err
}

func (r *repoPG) ListTriageByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*TriageCase, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+triageCols+` FROM triage_case
		WHERE assigned_doctor_id = $1 ORDER BY created_at DESC`, doctorID)
	if err != nil {
		return nil, err
	}
	return r.collectTriage(rows)
}

const emergencyCols = `id, patient_id, nurse_id, doctor_id, department, symptoms, created_at`

func scanEmergency(row pgx.Row) (*EmergencyCase, error) {
	var e EmergencyCase
	err := row.Scan(&e.ID, &e.PatientID, &e.NurseID, &e.DoctorID, &e.Department, &e.Symptoms, &e.CreatedAt)
	if db.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repoPG) CreateEmergencyCase(ctx context.Context, e *EmergencyCase) error {
	e.ID = uuid.New()
	return r.tx(ctx, func(ctx context.Context) error {
		if err := r.claim(ctx, e.PatientID, CaseEmergency, e.ID); err != nil {
			return err
		}
		err := r.conn(ctx).QueryRow(ctx, `
			INSERT INTO emergency_case (id, patient_id, nurse_id, doctor_id, department, symptoms)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at`,
			e.ID, e.PatientID, e.NurseID, e.DoctorID, e.Department, e.Symptoms).Scan(&e.CreatedAt)
		if db.IsUniqueViolation(err, "") {
			return &ConflictError{PatientID: e.PatientID, Existing: CaseEmergency, Raced: true}
		}
		return err
	})
}

func (r *repoPG) GetEmergencyCase(ctx context.Context, id uuid.UUID) (*EmergencyCase, error) {
	return scanEmergency(r.conn(ctx).QueryRow(ctx, `SELECT `+emergencyCols+` FROM emergency_case WHERE id = $1`, id))
}

func (r *repoPG) DeleteEmergencyCase(ctx context.Context, e *EmergencyCase) error {
	return r.tx(ctx, func(ctx context.Context) error {
		if err := r.release(ctx, e.PatientID, e.ID); err != nil {
			return err
		}
		tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM emergency_case WHERE id = $1`, e.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *repoPG) ListEmergencyByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*EmergencyCase, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+emergencyCols+` FROM emergency_case
		WHERE doctor_id = $1 ORDER BY created_at DESC`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*EmergencyCase
	for rows.Next() {
		e, err := scanEmergency(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
