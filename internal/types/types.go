package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// ResumeProfile is the candidate profile entered in the wizard and normalized by the backend
type ResumeProfile struct {
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Experience      string   `json:"experience"`
	ExperienceYears int      `json:"experience_years"`
	Education       string   `json:"education"`
	Skills          []string `json:"skills"`
}

// HasSkills reports whether the profile carries at least one skill
func (p *ResumeProfile) HasSkills() bool {
	return p != nil && len(p.Skills) > 0
}

// QuestionKind selects the flavour of generated questions
type QuestionKind string

const (
	KindMultipleChoice QuestionKind = "mcq"
	KindCoding         QuestionKind = "coding"
)

// ParseQuestionKind validates a kind coming from a form or config value
func ParseQuestionKind(s string) (QuestionKind, error) {
	switch QuestionKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindMultipleChoice:
		return KindMultipleChoice, nil
	case KindCoding:
		return KindCoding, nil
	default:
		return "", fmt.Errorf("unknown question kind %q (must be 'mcq' or 'coding')", s)
	}
}

// Label returns a human readable name for the kind
func (k QuestionKind) Label() string {
	switch k {
	case KindCoding:
		return "Coding"
	default:
		return "Multiple choice"
	}
}

// Option is one multiple-choice answer. Label is the canonical answer value
// ("A", "B", ...) and Text is what the user sees.
type Option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// ParseOption splits a backend option string such as "B) Channels" into its label and text.
// The label keeps the case it was written in. When no letter label is present the
// option's 1-based position is used instead.
func ParseOption(raw string, position int) Option {
	text := strings.TrimSpace(raw)
	runes := []rune(text)
	if len(runes) > 0 && unicode.IsLetter(runes[0]) {
		if len(runes) == 1 || strings.ContainsRune(").: ", runes[1]) {
			return Option{Label: string(runes[0]), Text: text}
		}
	}
	return Option{Label: fmt.Sprintf("%d", position+1), Text: text}
}

// UnmarshalJSON accepts both the backend's plain string options and explicit {label, text} objects
func (o *Option) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*o = ParseOption(raw, 0)
		return nil
	}

	type plain Option
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("option must be a string or an object with label and text: %w", err)
	}
	*o = Option(p)
	return nil
}

// MarshalJSON writes the option back in the backend's string form so that
// evaluation requests carry the questions exactly as they were generated.
func (o Option) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Text)
}

// TestQuestion is one generated assessment question
type TestQuestion struct {
	Question              string       `json:"question"`
	Kind                  QuestionKind `json:"question_type,omitempty"`
	Options               []Option     `json:"options,omitempty"`
	CorrectAnswer         *string      `json:"correct_answer,omitempty"`
	CodeTemplate          *string      `json:"code_template,omitempty"`
	ExpectedOutputExample *string      `json:"expected_output_example,omitempty"`
}

// UnmarshalJSON decodes options with their position so unlabeled options get distinct labels
func (q *TestQuestion) UnmarshalJSON(data []byte) error {
	type plain TestQuestion
	var p struct {
		plain
		Options []json.RawMessage `json:"options,omitempty"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*q = TestQuestion(p.plain)
	q.Options = nil
	for i, rawOpt := range p.Options {
		var s string
		if err := json.Unmarshal(rawOpt, &s); err == nil {
			q.Options = append(q.Options, ParseOption(s, i))
			continue
		}
		var opt Option
		if err := json.Unmarshal(rawOpt, &opt); err != nil {
			return fmt.Errorf("question option %d: %w", i, err)
		}
		q.Options = append(q.Options, opt)
	}
	return nil
}

// HasLabel reports whether label is one of the question's option labels
func (q TestQuestion) HasLabel(label string) bool {
	for _, opt := range q.Options {
		if opt.Label == label {
			return true
		}
	}
	return false
}

// Sentinel answers recorded when a question was left unanswered
const (
	NoAnswerProvided = "No answer provided."
	NoCodeProvided   = "No code provided."
)

// AnswerSet maps a question's 0-based index, as a decimal string, to the submitted answer
type AnswerSet map[string]string

// GenerateTestRequest is the body of the generate-test call
type GenerateTestRequest struct {
	Skills          []string     `json:"skills"`
	ExperienceYears int          `json:"experience_years"`
	NumQuestions    int          `json:"num_questions"`
	QuestionType    QuestionKind `json:"question_type"`
}

// EvaluateTestRequest is the body of the evaluate-test call
type EvaluateTestRequest struct {
	Questions []TestQuestion `json:"questions"`
	Answers   AnswerSet      `json:"answers"`
}

// LearningResource is a link suggested for further study
type LearningResource struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description,omitempty"`
}

// LearningPath is a structured plan targeting one weakness
type LearningPath struct {
	Topic     string             `json:"topic"`
	Reason    string             `json:"reason"`
	Path      string             `json:"path"`
	Resources []LearningResource `json:"resources"`
}

// TestResults is the evaluation returned for a submitted test
type TestResults struct {
	OverallFeedback          string             `json:"overall_feedback"`
	Strengths                []string           `json:"strengths"`
	Weaknesses               []string           `json:"weaknesses"`
	DetailedFeedback         []string           `json:"detailed_feedback"`
	GeneralLearningResources []LearningResource `json:"general_learning_resources"`
	SpecificLearningPaths    []LearningPath     `json:"specific_learning_paths"`
}

// JobRecommendation is a posting matched to the profile
type JobRecommendation struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
	ApplyLink   string `json:"apply_link"`
}
