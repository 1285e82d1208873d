package cases

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

type Severity string

const (
	SeverityEmergency Severity = "emergency"
	SeverityModerate  Severity = "moderate"
	SeverityMild      Severity = "mild"
)

// Symptom is one entry of the fixed symptom catalog. Key is the storage and
// API name, Feature the model input column, Phrases the keywords used to
// spot the symptom in clinical free text.
type Symptom struct {
	Key      string
	Feature  string
	Severity Severity
	Phrases  []string
}

// Catalog lists every symptom in storage column order.
var Catalog = []Symptom{
	{"chest_pain", "Chest_Pain", SeverityEmergency, []string{"chest pain", "chest hurts", "pain in chest"}},
	{"severe_breathlessness", "Severe_Breathlessness", SeverityEmergency, []string{"severe breathlessness", "cannot breathe", "extreme difficulty breathing"}},
	{"sudden_confusion", "Sudden_Confusion", SeverityEmergency, []string{"sudden confusion", "confused", "disoriented", "confusion"}},
	{"stroke_symptoms", "Stroke_Symptoms", SeverityEmergency, []string{"stroke", "facial droop", "slurred speech"}},
	{"seizure", "Seizure", SeverityEmergency, []string{"seizure", "convulsion", "fits"}},
	{"severe_trauma", "Severe_Trauma", SeverityEmergency, []string{"severe trauma", "major injury", "major trauma"}},
	{"uncontrolled_bleeding", "Uncontrolled_Bleeding", SeverityEmergency, []string{"uncontrolled bleeding", "heavy bleeding", "massive bleeding"}},
	{"loss_of_consciousness", "Loss_of_Consciousness", SeverityEmergency, []string{"unconscious", "loss of consciousness", "passed out", "unresponsive"}},
	{"severe_allergic_reaction", "Severe_Allergic_Reaction", SeverityEmergency, []string{"anaphylaxis", "severe allergic", "allergic reaction"}},

	{"persistent_fever", "Persistent_Fever", SeverityModerate, []string{"persistent fever", "high fever", "fever"}},
	{"vomiting", "Vomiting", SeverityModerate, []string{"vomiting", "throwing up", "nausea and vomiting"}},
	{"moderate_abdominal_pain", "Moderate_Abdominal_Pain", SeverityModerate, []string{"abdominal pain", "stomach pain", "belly pain"}},
	{"persistent_cough", "Persistent_Cough", SeverityModerate, []string{"persistent cough", "chronic cough"}},
	{"moderate_breathlessness", "Moderate_Breathlessness", SeverityModerate, []string{"breathlessness", "shortness of breath", "difficulty breathing"}},
	{"severe_headache", "Severe_Headache", SeverityModerate, []string{"severe headache", "intense headache", "worst headache"}},
	{"dizziness", "Dizziness", SeverityModerate, []string{"dizziness", "dizzy", "lightheaded", "vertigo"}},
	{"dehydration", "Dehydration", SeverityModerate, []string{"dehydration", "dehydrated"}},
	{"palpitations", "Palpitations", SeverityModerate, []string{"palpitations", "heart racing", "rapid heartbeat"}},
	{"migraine", "Migraine", SeverityModerate, []string{"migraine"}},

	{"mild_headache", "Mild_Headache", SeverityMild, []string{"mild headache", "headache", "head hurts"}},
	{"sore_throat", "Sore_Throat", SeverityMild, []string{"sore throat", "throat pain"}},
	{"runny_nose", "Runny_Nose", SeverityMild, []string{"runny nose", "nasal congestion", "stuffy nose"}},
	{"mild_cough", "Mild_Cough", SeverityMild, []string{"mild cough", "cough", "slight cough"}},
	{"fatigue", "Fatigue", SeverityMild, []string{"fatigue", "tired", "exhausted", "weakness", "lethargic"}},
	{"body_ache", "Body_Ache", SeverityMild, []string{"body ache", "body pain", "muscle pain"}},
	{"mild_abdominal_pain", "Mild_Abdominal_Pain", SeverityMild, []string{"mild abdominal pain", "mild stomach pain"}},
	{"skin_rash", "Skin_Rash", SeverityMild, []string{"skin rash", "rash", "itchy skin", "hives"}},
	{"mild_back_pain", "Mild_Back_Pain", SeverityMild, []string{"mild back pain", "back pain", "backache"}},
	{"mild_joint_pain", "Mild_Joint_Pain", SeverityMild, []string{"mild joint pain", "joint pain", "knee pain"}},
}

// phrasePatterns holds one whole-word matcher per catalog entry, so "fits"
// does not fire on "benefits".
var phrasePatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(Catalog))
	for i, sym := range Catalog {
		quoted := make([]string, len(sym.Phrases))
		for j, p := range sym.Phrases {
			quoted[j] = regexp.QuoteMeta(p)
		}
		out[i] = regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	return out
}()

var catalogIndex = func() map[string]int {
	m := make(map[string]int, len(Catalog))
	for i, s := range Catalog {
		m[s.Key] = i
	}
	return m
}()

// SymptomSet holds symptom flags keyed by catalog key. Absent keys are false.
type SymptomSet map[string]bool

// Validate rejects keys outside the catalog.
func (s SymptomSet) Validate() error {
	var unknown []string
	for k := range s {
		if _, ok := catalogIndex[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown symptoms: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// Flags returns one flag per catalog entry, in catalog order.
func (s SymptomSet) Flags() []bool {
	out := make([]bool, len(Catalog))
	for i, sym := range Catalog {
		out[i] = s[sym.Key]
	}
	return out
}

// Present lists the keys set to true, in catalog order.
func (s SymptomSet) Present() []string {
	var out []string
	for _, sym := range Catalog {
		if s[sym.Key] {
			out = append(out, sym.Key)
		}
	}
	return out
}

// SymptomSetFromFlags is the inverse of Flags. Only true flags are kept.
func SymptomSetFromFlags(flags []bool) SymptomSet {
	s := make(SymptomSet)
	for i, f := range flags {
		if f && i < len(Catalog) {
			s[Catalog[i].Key] = true
		}
	}
	return s
}

// Extraction is what could be read out of a clinical document.
type Extraction struct {
	PatientName string     `json:"patient_name"`
	Symptoms    SymptomSet `json:"matched_symptoms"`
	RawText     string     `json:"raw_text"`
}

var (
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)(?:patient|patient\s*name|name\s*of\s*patient|name)\s*[:\-]\s*(.+)`),
		regexp.MustCompile(`(?im)(?:mr|mrs|ms|dr)\.?\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)+)`),
		regexp.MustCompile(`(?im)^([A-Z][a-z]+(?:\s+[A-Z][a-z]+)+)`),
	}
	trailingNoise = regexp.MustCompile(`[,;:\d/\-]+$`)
)

// ExtractSymptoms scans already-extracted document text for catalog
// phrases and a likely patient name.
func ExtractSymptoms(text string) Extraction {
	text = strings.TrimSpace(text)
	ex := Extraction{PatientName: guessName(text), Symptoms: make(SymptomSet), RawText: text}
	for i, sym := range Catalog {
		if phrasePatterns[i].MatchString(text) {
			ex.Symptoms[sym.Key] = true
		}
	}
	return ex
}

func guessName(text string) string {
	for _, re := range namePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		candidate := strings.TrimSpace(m[1])
		if i := strings.IndexByte(candidate, '\n'); i >= 0 {
			candidate = candidate[:i]
		}
		candidate = strings.TrimSpace(trailingNoise.ReplaceAllString(strings.TrimSpace(candidate), ""))
		if n := len(strings.Fields(candidate)); n >= 2 && n <= 5 && len(candidate) <= 60 {
			return candidate
		}
	}
	return ""
}
