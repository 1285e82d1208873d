package patient

import (
	"context"
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

const patientCols = `id, full_name, age, gender, blood_group, allergies, past_surgeries,
	diabetes, hypertension, heart_disease, asthma, chronic_kidney_disease,
	previous_stroke, smoker, obese, previous_heart_attack, previous_hospitalization,
	created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FullName, &p.Age, &p.Gender, &p.BloodGroup, &p.Allergies, &p.PastSurgeries,
		&p.Diabetes, &p.Hypertension, &p.HeartDisease, &p.Asthma, &p.ChronicKidneyDisease,
		&p.PreviousStroke, &p.Smoker, &p.Obese, &p.PreviousHeartAttack, &p.PreviousHospitalization,
		&p.CreatedAt, &p.UpdatedAt)
	if db.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, full_name, age, gender, blood_group, allergies, past_surgeries,
			diabetes, hypertension, heart_disease, asthma, chronic_kidney_disease,
			previous_stroke, smoker, obese, previous_heart_attack, previous_hospitalization)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING created_at, updated_at`,
		p.ID, p.FullName, p.Age, p.Gender, p.BloodGroup, p.Allergies, p.PastSurgeries,
		p.Diabetes, p.Hypertension, p.HeartDisease, p.Asthma, p.ChronicKidneyDisease,
		p.PreviousStroke, p.Smoker, p.Obese, p.PreviousHeartAttack, p.PreviousHospitalization,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *repoPG) SearchByName(ctx context.Context, q string, limit int) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+patientCols+` FROM patient
		WHERE LOWER(full_name) LIKE '%' || LOWER($1) || '%'
		ORDER BY full_name, id
		LIMIT $2`, likeEscaper.Replace(q), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *repoPG) UpdateHistory(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET allergies=$2, past_surgeries=$3,
			diabetes=$4, hypertension=$5, heart_disease=$6, asthma=$7, chronic_kidney_disease=$8,
			previous_stroke=$9, smoker=$10, obese=$11, previous_heart_attack=$12,
			previous_hospitalization=$13, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Allergies, p.PastSurgeries,
		p.Diabetes, p.Hypertension, p.HeartDisease, p.Asthma, p.ChronicKidneyDisease,
		p.PreviousStroke, p.Smoker, p.Obese, p.PreviousHeartAttack, p.PreviousHospitalization)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
