package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Service checks caller-supplied data against declared per-action rules.
type Service interface {
	Validate(data map[string]interface{}, rules map[string]interface{}) error
}

// Errors carries field-level validation failures. Unlike authorization
// failures, this detail is safe to disclose to the caller.
type Errors struct {
	Fields map[string][]string
}

func (e *Errors) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "validation failed: " + strings.Join(keys, ", ")
}

// Validator implements Service on go-playground rule syntax,
// e.g. {"title": "required,max=255"}.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	return &Validator{v: validator.New()}
}

func (s *Validator) Validate(data map[string]interface{}, rules map[string]interface{}) error {
	if len(rules) == 0 {
		return nil
	}
	result := s.v.ValidateMap(data, rules)
	if len(result) == 0 {
		return nil
	}

	fields := make(map[string][]string, len(result))
	for field, raw := range result {
		switch errs := raw.(type) {
		case validator.ValidationErrors:
			for _, fe := range errs {
				fields[field] = append(fields[field], ruleMessage(fe))
			}
		case error:
			fields[field] = append(fields[field], errs.Error())
		default:
			fields[field] = append(fields[field], fmt.Sprintf("%v", raw))
		}
	}
	return &Errors{Fields: fields}
}

func ruleMessage(fe validator.FieldError) string {
	if fe.Param() != "" {
		return fmt.Sprintf("failed rule %s=%s", fe.Tag(), fe.Param())
	}
	return "failed rule " + fe.Tag()
}
