package wizard

// Field is one input of an intake step. Every field is required; Rule names an
// extra validator tag checked on top of the non-blank requirement.
type Field struct {
	Name        string
	Label       string
	InputType   string
	Placeholder string
	Multiline   bool
	Rule        string
	RuleMessage string
}

// Step is one page of the intake form
type Step struct {
	Title  string
	Fields []Field
}

// Field names shared by the form templates and the profile builder
const (
	FieldName            = "name"
	FieldEmail           = "email"
	FieldExperienceYears = "experience_years"
	FieldExperience      = "experience"
	FieldEducation       = "education"
	FieldSkills          = "skills"
)

const (
	MsgInvalidEmail    = "Please enter a valid email address."
	MsgNoSkills        = "Please enter at least one skill."
	MsgInvalidYears    = "Please enter a valid number of years of experience."
	MsgMissingRequired = "Please fill in all required fields for this step."
)

// Steps is the intake form, in order
var Steps = []Step{
	{
		Title: "Personal details",
		Fields: []Field{
			{Name: FieldName, Label: "Full name", InputType: "text", Placeholder: "Jane Doe"},
			{Name: FieldEmail, Label: "Email", InputType: "email", Placeholder: "jane@example.com",
				Rule: "looseemail", RuleMessage: MsgInvalidEmail},
		},
	},
	{
		Title: "Experience",
		Fields: []Field{
			{Name: FieldExperienceYears, Label: "Years of experience", InputType: "number", Placeholder: "3",
				Rule: "years", RuleMessage: MsgInvalidYears},
			{Name: FieldExperience, Label: "Experience summary", Multiline: true,
				Placeholder: "Backend engineer building payment APIs..."},
		},
	},
	{
		Title: "Education",
		Fields: []Field{
			{Name: FieldEducation, Label: "Education", Multiline: true, Placeholder: "BSc Computer Science, 2019"},
		},
	},
	{
		Title: "Skills",
		Fields: []Field{
			{Name: FieldSkills, Label: "Skills (comma separated)", InputType: "text", Placeholder: "Go, SQL, Kubernetes",
				Rule: "skilllist", RuleMessage: MsgNoSkills},
		},
	},
}

// FieldNames lists every intake field across all steps
func FieldNames() []string {
	var names []string
	for _, step := range Steps {
		for _, f := range step.Fields {
			names = append(names, f.Name)
		}
	}
	return names
}
