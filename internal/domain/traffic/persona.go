package traffic

import "time"

// MissionType tags the closed set of goal-directed mission variants
type MissionType string

const (
	MissionCollectWebVitals MissionType = "collect_web_vitals"
	MissionFindAndClick     MissionType = "find_and_click"
	MissionFillForm         MissionType = "fill_form"
)

// IsValid checks if the MissionType is a valid value
func (m MissionType) IsValid() bool {
	switch m {
	case MissionCollectWebVitals, MissionFindAndClick, MissionFillForm:
		return true
	}
	return false
}

// String returns the string representation of MissionType
func (m MissionType) String() string {
	return string(m)
}

// CollectWebVitalsParams configures a performance collection mission
type CollectWebVitalsParams struct {
	PagesToVisit int `json:"pages_to_visit"`
}

// FindAndClickParams configures a find-and-click mission. TargetText is
// matched case-insensitively against the visible text of clickable elements;
// "|" separates alternative phrases.
type FindAndClickParams struct {
	TargetText string `json:"target_text"`
}

// FillFormParams configures a form-filling mission. TargetSelector locates
// the form to fill; an empty selector means any visible form.
type FillFormParams struct {
	TargetSelector string `json:"target_selector"`
}

// Goal is the tagged union of mission variants a persona can carry.
// Exactly the payload matching Type is consulted; the others stay nil.
type Goal struct {
	Type             MissionType             `json:"type"`
	CollectWebVitals *CollectWebVitalsParams `json:"collect_web_vitals,omitempty"`
	FindAndClick     *FindAndClickParams     `json:"find_and_click,omitempty"`
	FillForm         *FillFormParams         `json:"fill_form,omitempty"`
}

// Persona is a reusable behavior template. Sessions overlay sampled
// demographics onto a value copy via WithDemographics; the catalog entries
// themselves are never mutated.
type Persona struct {
	Name                       string         `json:"name"`
	GoalKeywords               map[string]int `json:"goal_keywords,omitempty"`
	GenericKeywords            map[string]int `json:"generic_keywords,omitempty"`
	NavigationDepth            IntRange       `json:"navigation_depth"`
	DwellTime                  DurationRange  `json:"dwell_time"`
	Gender                     string         `json:"gender,omitempty"`
	AgeRange                   IntRange       `json:"age_range"`
	CanFillForms               bool           `json:"can_fill_forms"`
	Goal                       *Goal          `json:"goal,omitempty"`
	ScrollProbability          float64        `json:"scroll_probability"`
	FormInteractionProbability float64        `json:"form_interaction_probability"`
}

// WithDemographics returns a copy of the persona with the sampled gender
// and age range overlaid. Keyword maps are shared read-only with the
// catalog entry.
func (p Persona) WithDemographics(gender string, ageRange IntRange) Persona {
	p.Gender = gender
	p.AgeRange = ageRange
	return p
}

// NewPersona returns a persona with every optional field at its default
func NewPersona(name string) Persona {
	return Persona{
		Name:                       name,
		NavigationDepth:            IntRange{Min: 3, Max: 6},
		DwellTime:                  DurationRange{Min: 20 * time.Second, Max: 60 * time.Second},
		Gender:                     "Neutral",
		AgeRange:                   IntRange{Min: 18, Max: 65},
		ScrollProbability:          0.85,
		FormInteractionProbability: 0.25,
	}
}

// DefaultPersonas returns the built-in persona catalog
func DefaultPersonas() []Persona {
	methodical := NewPersona("Methodical Customer")
	methodical.GoalKeywords = map[string]int{"contact": 10, "price": 10, "demo": 9, "signup": 8, "form": 7}
	methodical.GenericKeywords = map[string]int{"faq": 6, "testimonial": 7, "about us": 5}
	methodical.NavigationDepth = IntRange{Min: 4, Max: 7}
	methodical.DwellTime = DurationRange{Min: 40 * time.Second, Max: 75 * time.Second}
	methodical.CanFillForms = true
	methodical.Goal = &Goal{
		Type:     MissionFillForm,
		FillForm: &FillFormParams{TargetSelector: "form#contact-form, form[name*='contact']"},
	}

	researcher := NewPersona("Deep Researcher")
	researcher.GoalKeywords = map[string]int{"whitepaper": 12, "case study": 12, "report": 10, "data": 9}
	researcher.GenericKeywords = map[string]int{"blog": 5, "resources": 8, "library": 7}
	researcher.NavigationDepth = IntRange{Min: 6, Max: 10}
	researcher.DwellTime = DurationRange{Min: 50 * time.Second, Max: 90 * time.Second}
	researcher.Goal = &Goal{
		Type:         MissionFindAndClick,
		FindAndClick: &FindAndClickParams{TargetText: "download|unduh|get now"},
	}

	analyst := NewPersona("Performance Analyst")
	analyst.GoalKeywords = map[string]int{"home": 10, "about": 8, "products": 9, "blog": 7}
	analyst.GenericKeywords = map[string]int{"news": 5, "contact": 6}
	analyst.NavigationDepth = IntRange{Min: 5, Max: 8}
	analyst.DwellTime = DurationRange{Min: 10 * time.Second, Max: 20 * time.Second}
	analyst.Goal = &Goal{
		Type:             MissionCollectWebVitals,
		CollectWebVitals: &CollectWebVitalsParams{PagesToVisit: 5},
	}

	quick := NewPersona("Quick Browser")
	quick.GoalKeywords = map[string]int{"home": 8, "products": 7, "services": 6}
	quick.GenericKeywords = map[string]int{"blog": 3, "news": 4}
	quick.NavigationDepth = IntRange{Min: 2, Max: 4}
	quick.DwellTime = DurationRange{Min: 15 * time.Second, Max: 30 * time.Second}

	jobSeeker := NewPersona("Job Seeker")
	jobSeeker.GoalKeywords = map[string]int{"career": 12, "job": 10, "hiring": 9, "vacancies": 9}
	jobSeeker.GenericKeywords = map[string]int{"about": 6, "company": 8, "team": 7}
	jobSeeker.NavigationDepth = IntRange{Min: 6, Max: 10}
	jobSeeker.DwellTime = DurationRange{Min: 45 * time.Second, Max: 90 * time.Second}
	jobSeeker.CanFillForms = true
	jobSeeker.Goal = &Goal{
		Type:         MissionFindAndClick,
		FindAndClick: &FindAndClickParams{TargetText: "apply|daftar sekarang|lamar"},
	}

	return []Persona{methodical, researcher, analyst, quick, jobSeeker}
}
