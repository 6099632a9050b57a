package sampling

import "github.com/okian/callgen/internal/domain/model"

// Occupation slugs.
const (
	Student       = "student"
	OfficeWorker  = "office_worker"
	Retired       = "retired"
	Homemaker     = "homemaker"
	BusinessOwner = "business_owner"
	Teacher       = "teacher"
	FactoryWorker = "factory_worker"
	Farmer        = "farmer"
	Freelancer    = "freelancer"
	Other         = "other"
)

var occupations = []string{
	Student, OfficeWorker, Retired, Homemaker, BusinessOwner,
	Teacher, FactoryWorker, Farmer, Freelancer, Other,
}

type weighted struct {
	name   string
	weight float64
}

// Bracket is an age range with its plausible occupations and base awareness.
type Bracket struct {
	Name        string
	Min, Max    int
	Weight      float64
	Occupations []string
	// Awareness holds base probabilities for low, medium, high.
	Awareness [3]float64
}

var brackets = []Bracket{
	{Name: "18-25", Min: 18, Max: 25, Weight: 0.20, Occupations: []string{Student, OfficeWorker, Freelancer, Other}, Awareness: [3]float64{0.4, 0.5, 0.1}},
	{Name: "26-40", Min: 26, Max: 40, Weight: 0.35, Occupations: []string{OfficeWorker, BusinessOwner, Teacher, Freelancer, Other}, Awareness: [3]float64{0.2, 0.6, 0.2}},
	{Name: "41-55", Min: 41, Max: 55, Weight: 0.25, Occupations: []string{BusinessOwner, Teacher, OfficeWorker, Homemaker, Other}, Awareness: [3]float64{0.3, 0.5, 0.2}},
	{Name: "56-70", Min: 56, Max: 70, Weight: 0.20, Occupations: []string{Retired, Homemaker, Farmer, Other}, Awareness: [3]float64{0.6, 0.3, 0.1}},
}

// fallbackBrackets applies to occupations no bracket lists.
var fallbackBrackets = map[string][]string{
	Student:   {"18-25"},
	Retired:   {"56-70"},
	Homemaker: {"41-55", "56-70"},
	Farmer:    {"41-55", "56-70"},
}

var defaultFallback = []string{"26-40", "41-55"}

const (
	fallbackMinAge = 18
	fallbackMaxAge = 70
)

var (
	highAwarenessJobs = map[string]bool{OfficeWorker: true, Teacher: true, Freelancer: true}
	lowAwarenessJobs  = map[string]bool{Farmer: true, FactoryWorker: true, Retired: true}
)

type scenarioTable struct {
	name    string
	weights []weighted
}

// Fraud scenario slugs with P(occupation | scenario).
var fraudScenarios = []scenarioTable{
	{"investment", []weighted{{OfficeWorker, .35}, {BusinessOwner, .30}, {Student, .15}, {Freelancer, .10}, {Other, .10}}},
	{"romance", []weighted{{Retired, .30}, {Homemaker, .25}, {Freelancer, .20}, {Student, .15}, {Other, .10}}},
	{"phishing", []weighted{{OfficeWorker, .40}, {Student, .25}, {BusinessOwner, .20}, {Freelancer, .10}, {Other, .05}}},
	{"identity_theft", []weighted{{Retired, .35}, {Homemaker, .25}, {Farmer, .20}, {FactoryWorker, .15}, {Other, .05}}},
	{"lottery", []weighted{{Retired, .30}, {Homemaker, .25}, {FactoryWorker, .20}, {Farmer, .15}, {Other, .10}}},
	{"fake_job", []weighted{{Student, .40}, {Homemaker, .25}, {FactoryWorker, .15}, {Freelancer, .15}, {Other, .05}}},
	{"banking", []weighted{{OfficeWorker, .35}, {BusinessOwner, .30}, {Retired, .20}, {Student, .10}, {Other, .05}}},
	{"impersonation_police", []weighted{{Retired, .30}, {Farmer, .25}, {Homemaker, .20}, {FactoryWorker, .15}, {Other, .10}}},
	{"impersonation_call_center", []weighted{{OfficeWorker, .30}, {Student, .25}, {Homemaker, .20}, {Retired, .15}, {Other, .10}}},
	{"postal_scam", []weighted{{Retired, .40}, {Homemaker, .25}, {Farmer, .20}, {FactoryWorker, .10}, {Other, .05}}},
	{"medical_scam", []weighted{{Retired, .45}, {Homemaker, .25}, {Farmer, .15}, {FactoryWorker, .10}, {Other, .05}}},
	{"education_scam", []weighted{{Student, .50}, {Homemaker, .25}, {OfficeWorker, .15}, {Freelancer, .05}, {Other, .05}}},
	{"tax_scam", []weighted{{BusinessOwner, .35}, {OfficeWorker, .30}, {Retired, .20}, {Freelancer, .10}, {Other, .05}}},
	{"charity_scam", []weighted{{Retired, .30}, {Homemaker, .25}, {Teacher, .20}, {OfficeWorker, .15}, {Other, .10}}},
	{"ecommerce_scam", []weighted{{Student, .30}, {Homemaker, .25}, {OfficeWorker, .20}, {Freelancer, .15}, {Other, .10}}},
}

// Benign conversation types. They carry no occupation weights.
var normalScenarios = []string{
	"service_consultation", "customer_care", "tech_support", "sales_consultation", "procedure_guidance",
	"official_notice", "appointment", "information_confirmation", "general_inquiry", "survey",
}

// Occupations returns every occupation slug.
func Occupations() []string { return append([]string(nil), occupations...) }

// Brackets returns the age brackets in ascending order.
func Brackets() []Bracket { return append([]Bracket(nil), brackets...) }

// FraudScenarios returns the built-in fraud scenario slugs.
func FraudScenarios() []string {
	out := make([]string, len(fraudScenarios))
	for i, s := range fraudScenarios {
		out[i] = s.name
	}
	return out
}

// NormalScenarios returns the benign conversation types.
func NormalScenarios() []string { return append([]string(nil), normalScenarios...) }

// Scenarios returns the scenarios for a kind.
func Scenarios(kind model.Kind) []string {
	if kind == model.KindNormal {
		return NormalScenarios()
	}
	return FraudScenarios()
}

func bracketByName(name string) (Bracket, bool) {
	for _, b := range brackets {
		if b.Name == name {
			return b, true
		}
	}
	return Bracket{}, false
}

// BracketBounds returns the inclusive age bounds of a bracket.
func BracketBounds(name string) (lo, hi int, ok bool) {
	b, ok := bracketByName(name)
	if !ok {
		return fallbackMinAge, fallbackMaxAge, false
	}
	return b.Min, b.Max, true
}

// BracketOf returns the bracket containing age, or "" when none does.
func BracketOf(age int) string {
	for _, b := range brackets {
		if age >= b.Min && age <= b.Max {
			return b.Name
		}
	}
	return ""
}

func listed(occupation string) bool {
	for _, b := range brackets {
		if contains(b.Occupations, occupation) {
			return true
		}
	}
	return false
}

func fallbackFor(occupation string) []string {
	if fb, ok := fallbackBrackets[occupation]; ok {
		return fb
	}
	return defaultFallback
}

// ValidOccupation reports whether occupation may appear in bracket: either the
// bracket lists it or, for occupations no bracket lists, the fallback table
// maps it there.
func ValidOccupation(bracket, occupation string) bool {
	if listed(occupation) {
		b, ok := bracketByName(bracket)
		return ok && contains(b.Occupations, occupation)
	}
	return contains(fallbackFor(occupation), bracket)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
