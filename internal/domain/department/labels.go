package department

import "strings"

// The closed set of treating departments. Any model output outside it is a
// data-integrity fault.
const (
	Emergency        = "Emergency"
	GeneralMedicine  = "General_Medicine"
	Cardiology       = "Cardiology"
	Neurology        = "Neurology"
	Pulmonology      = "Pulmonology"
	Gastroenterology = "Gastroenterology"
	Orthopedics      = "Orthopedics"
	Pediatrics       = "Pediatrics"
	Nephrology       = "Nephrology"
	Endocrinology    = "Endocrinology"
)

// Description is the static text a department is matched against on the
// free-text path.
type Description struct {
	Label string
	Text  string
}

// Descriptions is the department corpus in label order. It also defines the
// label set for the free-text path and must cover exactly the closed set.
var Descriptions = []Description{
	{Emergency, "Severe trauma, uncontrolled bleeding, stab wounds, gunshot injuries, " +
		"cardiac arrest, stroke symptoms, seizures, severe breathlessness, shock, " +
		"multi-system instability, undifferentiated critical patient"},
	{GeneralMedicine, "High fever, sepsis, infection, dehydration, diabetic emergency, " +
		"hypertension crisis, general weakness, multi-organ medical conditions"},
	{Cardiology, "Chest pain, myocardial infarction, cardiac arrest, palpitations, " +
		"heart failure, arrhythmia, sudden collapse"},
	{Neurology, "Stroke symptoms, seizures, paralysis, loss of consciousness, " +
		"head injury, severe sudden headache"},
	{Pulmonology, "Severe breathlessness, asthma attack, COPD exacerbation, pneumothorax, " +
		"respiratory distress, oxygen saturation dropping"},
	{Gastroenterology, "GI bleeding, vomiting blood, black stools, pancreatitis, " +
		"liver failure, severe abdominal pain"},
	{Orthopedics, "Fractures, broken bones, dislocations, crush injuries, " +
		"pelvic fracture, inability to move limb"},
	{Pediatrics, "Infant breathing difficulty, febrile seizures in child, " +
		"severe dehydration in child, pediatric emergency cases"},
	{Nephrology, "Kidney failure, dialysis emergency, severe electrolyte imbalance, " +
		"fluid overload, renal crisis"},
	{Endocrinology, "Diabetic ketoacidosis, thyroid storm, adrenal crisis, " +
		"severe blood sugar imbalance"},
}

var labelSet = func() map[string]bool {
	m := make(map[string]bool, len(Descriptions))
	for _, d := range Descriptions {
		m[d.Label] = true
	}
	return m
}()

// Labels returns the closed department set in corpus order.
func Labels() []string {
	out := make([]string, len(Descriptions))
	for i, d := range Descriptions {
		out[i] = d.Label
	}
	return out
}

// IsValid reports whether label belongs to the closed set.
func IsValid(label string) bool {
	return labelSet[label]
}

// Canonical resolves a case-insensitive department name, accepting spaces
// for underscores, to its label.
func Canonical(name string) (string, bool) {
	n := strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	for _, d := range Descriptions {
		if strings.EqualFold(d.Label, n) {
			return d.Label, true
		}
	}
	return "", false
}

// CriticalPhrases force an Emergency classification whenever one appears in
// the free text, regardless of any other signal.
var CriticalPhrases = []string{
	"unconscious",
	"not breathing",
	"cardiac arrest",
	"massive bleeding",
}

// TriageLevelCritical is reported with a critical-phrase override.
const TriageLevelCritical = "RED - CRITICAL"
