package wizard

import "fmt"

// SectionID names a top-level view of the wizard page
type SectionID string

const (
	SectionResumeInput    SectionID = "manual-resume-input-section"
	SectionParsedResume   SectionID = "parsed-resume-section"
	SectionTestGeneration SectionID = "test-generation-section"
	SectionTestTaking     SectionID = "test-taking-section"
	SectionTestResults    SectionID = "test-results-section"
	SectionJobs           SectionID = "job-recommendation-section"
)

// Sections lists every section in page order with its heading
var Sections = []struct {
	ID    SectionID
	Title string
}{
	{SectionResumeInput, "Tell us about yourself"},
	{SectionParsedResume, "Your profile"},
	{SectionTestGeneration, "Generate a skill test"},
	{SectionTestTaking, "Take the test"},
	{SectionTestResults, "Your results"},
	{SectionJobs, "Recommended jobs"},
}

// backTargets maps a section to where its "go back" control leads
var backTargets = map[SectionID]SectionID{
	SectionParsedResume:   SectionResumeInput,
	SectionTestGeneration: SectionParsedResume,
	SectionTestTaking:     SectionTestGeneration,
	SectionTestResults:    SectionTestTaking,
	SectionJobs:           SectionTestResults,
}

// ParseSectionID validates a section name coming from a form
func ParseSectionID(s string) (SectionID, error) {
	for _, sec := range Sections {
		if string(sec.ID) == s {
			return sec.ID, nil
		}
	}
	return "", fmt.Errorf("unknown section %q", s)
}

// BackTarget returns the section reached by going back from id
func BackTarget(id SectionID) (SectionID, bool) {
	target, ok := backTargets[id]
	return target, ok
}

// SectionView is the render state of one section
type SectionView struct {
	ID      SectionID
	Title   string
	Visible bool
	Inert   bool
}

// Router tracks the single visible section. Switching is one assignment, so
// overlapping calls cannot leave two sections shown; the fade is pure CSS.
type Router struct {
	Current SectionID `json:"current"`
}

// NewRouter starts on the resume input section
func NewRouter() *Router {
	return &Router{Current: SectionResumeInput}
}

// Show makes id the only visible section. Unknown ids leave the state untouched.
func (r *Router) Show(id SectionID) error {
	if _, err := ParseSectionID(string(id)); err != nil {
		return err
	}
	r.Current = id
	return nil
}

// Visible returns the visible section, defaulting to the resume input
func (r *Router) Visible() SectionID {
	if r.Current == "" {
		return SectionResumeInput
	}
	return r.Current
}

// Views returns every section with its visibility; all but one are inert
func (r *Router) Views() []SectionView {
	current := r.Visible()
	views := make([]SectionView, 0, len(Sections))
	for _, sec := range Sections {
		visible := sec.ID == current
		views = append(views, SectionView{
			ID:      sec.ID,
			Title:   sec.Title,
			Visible: visible,
			Inert:   !visible,
		})
	}
	return views
}
