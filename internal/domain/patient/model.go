package patient

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// Genders accepted at intake. The classifiers one-hot encode Gender with
// Female as the baseline.
var Genders = []interface{}{"Male", "Female", "Other"}

// Comorbidities are the chronic-condition flags of a patient's history.
type Comorbidities struct {
	Diabetes                bool `db:"diabetes" json:"diabetes"`
	Hypertension            bool `db:"hypertension" json:"hypertension"`
	HeartDisease            bool `db:"heart_disease" json:"heart_disease"`
	Asthma                  bool `db:"asthma" json:"asthma"`
	ChronicKidneyDisease    bool `db:"chronic_kidney_disease" json:"chronic_kidney_disease"`
	PreviousStroke          bool `db:"previous_stroke" json:"previous_stroke"`
	Smoker                  bool `db:"smoker" json:"smoker"`
	Obese                   bool `db:"obese" json:"obese"`
	PreviousHeartAttack     bool `db:"previous_heart_attack" json:"previous_heart_attack"`
	PreviousHospitalization bool `db:"previous_hospitalization" json:"previous_hospitalization"`
}

// Patient maps to the patient table.
type Patient struct {
	ID            uuid.UUID `db:"id" json:"id"`
	FullName      string    `db:"full_name" json:"full_name"`
	Age           int       `db:"age" json:"age"`
	Gender        string    `db:"gender" json:"gender"`
	BloodGroup    string    `db:"blood_group" json:"blood_group"`
	Allergies     string    `db:"allergies" json:"allergies"`
	PastSurgeries string    `db:"past_surgeries" json:"past_surgeries"`
	Comorbidities
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (p Patient) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FullName, validation.Required, validation.Length(1, 255)),
		validation.Field(&p.Age, validation.Required, validation.Min(0), validation.Max(150)),
		validation.Field(&p.Gender, validation.Required, validation.In(Genders...)),
		validation.Field(&p.BloodGroup, validation.Length(0, 5)),
	)
}

// NormalizeGender maps "male", " MALE " and the like to "Male".
func NormalizeGender(g string) string {
	g = strings.TrimSpace(g)
	if g == "" {
		return g
	}
	return strings.ToUpper(g[:1]) + strings.ToLower(g[1:])
}

// HistoryUpdate is a partial update of a patient's history. Nil fields are
// left unchanged.
type HistoryUpdate struct {
	Diabetes                *bool   `json:"diabetes"`
	Hypertension            *bool   `json:"hypertension"`
	HeartDisease            *bool   `json:"heart_disease"`
	Asthma                  *bool   `json:"asthma"`
	ChronicKidneyDisease    *bool   `json:"chronic_kidney_disease"`
	PreviousStroke          *bool   `json:"previous_stroke"`
	Smoker                  *bool   `json:"smoker"`
	Obese                   *bool   `json:"obese"`
	PreviousHeartAttack     *bool   `json:"previous_heart_attack"`
	PreviousHospitalization *bool   `json:"previous_hospitalization"`
	Allergies               *string `json:"allergies"`
	PastSurgeries           *string `json:"past_surgeries"`
}

// Apply copies every supplied field onto p.
func (u HistoryUpdate) Apply(p *Patient) {
	flags := []struct {
		src *bool
		dst *bool
	}{
		{u.Diabetes, &p.Diabetes},
		{u.Hypertension, &p.Hypertension},
		{u.HeartDisease, &p.HeartDisease},
		{u.Asthma, &p.Asthma},
		{u.ChronicKidneyDisease, &p.ChronicKidneyDisease},
		{u.PreviousStroke, &p.PreviousStroke},
		{u.Smoker, &p.Smoker},
		{u.Obese, &p.Obese},
		{u.PreviousHeartAttack, &p.PreviousHeartAttack},
		{u.PreviousHospitalization, &p.PreviousHospitalization},
	}
	for _, f := range flags {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	if u.Allergies != nil {
		p.Allergies = *u.Allergies
	}
	if u.PastSurgeries != nil {
		p.PastSurgeries = *u.PastSurgeries
	}
}
