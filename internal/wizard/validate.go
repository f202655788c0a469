package wizard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// emailPattern is deliberately loose: something@something.something
var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	rules := map[string]validator.Func{
		"notblank":   notBlank,
		"looseemail": looseEmail,
		"skilllist":  skillList,
		"years":      nonNegativeYears,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register validation %s: %v", tag, err))
		}
	}
	return v
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func looseEmail(fl validator.FieldLevel) bool {
	return emailPattern.MatchString(fl.Field().String())
}

func skillList(fl validator.FieldLevel) bool {
	return len(ParseSkills(fl.Field().String())) > 0
}

func nonNegativeYears(fl validator.FieldLevel) bool {
	_, err := ParseYears(fl.Field().String())
	return err == nil
}

// ParseSkills splits a comma separated list, trims every token and drops empty
// and repeated ones while keeping the first-seen order.
func ParseSkills(raw string) []string {
	skills := []string{}
	seen := make(map[string]bool)
	for token := range strings.SplitSeq(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true
		skills = append(skills, token)
	}
	return skills
}

// leadingInt matches the integer prefix of a field, so "3.5" and "3 years" read as 3
var leadingInt = regexp.MustCompile(`^[+-]?\d+`)

// ParseYears reads the leading whole number of years and rejects negatives
func ParseYears(raw string) (int, error) {
	digits := leadingInt.FindString(strings.TrimSpace(raw))
	if digits == "" {
		return 0, fmt.Errorf("years of experience must start with a whole number, got %q", raw)
	}
	years, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("years of experience out of range: %w", err)
	}
	if years < 0 {
		return 0, fmt.Errorf("years of experience cannot be negative")
	}
	return years, nil
}

// ValidationError describes why a step cannot be left
type ValidationError struct {
	Step    int
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %d invalid (%s): %s", e.Step, strings.Join(e.Fields, ", "), e.Message)
}

// validateStep checks one step against values. Fields failing either the
// required check or their rule are reported; the message is the first rule
// failure, or the generic one when only required checks failed.
func validateStep(step int, values map[string]string) *ValidationError {
	var invalid []string
	message := ""

	for _, f := range Steps[step].Fields {
		value := values[f.Name]
		bad := validate.Var(value, "notblank") != nil
		if f.Rule != "" && validate.Var(value, f.Rule) != nil {
			bad = true
			if message == "" {
				message = f.RuleMessage
			}
		}
		if bad {
			invalid = append(invalid, f.Name)
		}
	}

	if len(invalid) == 0 {
		return nil
	}
	if message == "" {
		message = MsgMissingRequired
	}
	return &ValidationError{Step: step, Fields: invalid, Message: message}
}
