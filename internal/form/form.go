// Package form is a generic, backend-agnostic state container for
// fixed-shape forms. A Form holds the current field values, one error
// message per field, and the submission-in-progress flag, and validates the
// values against declarative per-field rules.
//
// Field names are a named string type chosen by the caller, so a typo in a
// field name is a compile error rather than a silent miss:
//
//	type loginField string
//	const (
//		fieldEmail    loginField = "email"
//		fieldPassword loginField = "password"
//	)
//	f := form.New(form.Values[loginField]{fieldEmail: req.Email}, rules)
//
// A Form is not safe for concurrent use. Handlers build one per request.
package form

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Values maps field names to their current string values. An absent key is
// a null/undefined value.
type Values[F ~string] map[F]string

// Rule is the validation configuration for one field. Checks run in the
// order required, MinLength, MaxLength, Pattern, Custom and stop at the
// first failure.
type Rule struct {
	Required  bool
	MinLength int
	MaxLength int
	Pattern   *regexp.Regexp

	// Custom returns a non-empty message when the value is invalid.
	Custom func(value string) string

	// DisplayName is used in generated messages. Defaults to the field name.
	DisplayName string
}

// Rules is the immutable rule set of a form, keyed by field.
type Rules[F ~string] map[F]Rule

// FieldProps bundles what an input control needs for one field.
type FieldProps[F ~string] struct {
	Name     F
	Value    string
	OnChange func(value string)
	Error    string
}

// Form is the form state container.
type Form[F ~string] struct {
	initial    Values[F]
	values     Values[F]
	rules      Rules[F]
	errors     map[F]string
	submitting bool
}

// New creates a form whose values start as a copy of initial. The rule set
// is copied so later changes by the caller do not leak in.
func New[F ~string](initial Values[F], rules Rules[F]) *Form[F] {
	r := make(Rules[F], len(rules))
	for k, v := range rules {
		r[k] = v
	}
	return &Form[F]{
		initial: copyValues(initial),
		values:  copyValues(initial),
		rules:   r,
		errors:  make(map[F]string),
	}
}

// SetValue overwrites one field and clears its recorded error. The error is
// not re-evaluated until the next ValidateField or ValidateAll.
func (f *Form[F]) SetValue(field F, value string) {
	if !f.inShape(field) {
		slog.Debug("form: ignoring unknown field", slog.String("field", string(field)))
		return
	}
	f.values[field] = value
	delete(f.errors, field)
}

// SetValues merges several fields at once, with SetValue semantics per field.
func (f *Form[F]) SetValues(partial Values[F]) {
	for field, value := range partial {
		f.SetValue(field, value)
	}
}

// ValidateField runs the field's rule and records the first failing check.
// Fields without a rule always pass.
func (f *Form[F]) ValidateField(field F) bool {
	rule, ok := f.rules[field]
	if !ok {
		return true
	}
	if msg := rule.check(string(field), f.values[field]); msg != "" {
		f.errors[field] = msg
		return false
	}
	delete(f.errors, field)
	return true
}

// ValidateAll validates every field that has a rule. It does not stop at the
// first failure, so all errors are available at once.
func (f *Form[F]) ValidateAll() bool {
	valid := true
	for field := range f.rules {
		if !f.ValidateField(field) {
			valid = false
		}
	}
	return valid
}

// Reset restores the initial values and clears errors and the submitting flag.
func (f *Form[F]) Reset() {
	f.values = copyValues(f.initial)
	f.errors = make(map[F]string)
	f.submitting = false
}

// SetSubmitting sets the in-flight flag around an async submit.
func (f *Form[F]) SetSubmitting(submitting bool) {
	f.submitting = submitting
}

// IsSubmitting reports whether a submit is in flight.
func (f *Form[F]) IsSubmitting() bool {
	return f.submitting
}

// FieldProps returns the binding bundle for one input. Value is "" for an
// absent field.
func (f *Form[F]) FieldProps(field F) FieldProps[F] {
	return FieldProps[F]{
		Name:     field,
		Value:    f.values[field],
		OnChange: func(value string) { f.SetValue(field, value) },
		Error:    f.errors[field],
	}
}

// SetError records a message for a field. Only fields with a rule can carry
// errors; others are ignored.
func (f *Form[F]) SetError(field F, message string) {
	if _, ok := f.rules[field]; !ok {
		return
	}
	f.errors[field] = message
}

// ClearError removes the recorded error for one field.
func (f *Form[F]) ClearError(field F) {
	delete(f.errors, field)
}

// ClearAllErrors removes every recorded error.
func (f *Form[F]) ClearAllErrors() {
	f.errors = make(map[F]string)
}

// HasErrors reports whether any field currently has an error.
func (f *Form[F]) HasErrors() bool {
	return len(f.errors) > 0
}

// Value returns the current value of a field ("" when absent).
func (f *Form[F]) Value(field F) string {
	return f.values[field]
}

// Values returns a copy of the current values.
func (f *Form[F]) Values() Values[F] {
	return copyValues(f.values)
}

// Error returns the recorded error for a field ("" when none).
func (f *Form[F]) Error(field F) string {
	return f.errors[field]
}

// Errors returns a copy of the recorded errors.
func (f *Form[F]) Errors() map[F]string {
	out := make(map[F]string, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}

// Err returns the recorded errors as a *ValidationError, or nil.
func (f *Form[F]) Err() error {
	if !f.HasErrors() {
		return nil
	}
	fields := make(map[string]string, len(f.errors))
	for k, v := range f.errors {
		fields[string(k)] = v
	}
	return &ValidationError{Fields: fields}
}

func (f *Form[F]) inShape(field F) bool {
	if _, ok := f.initial[field]; ok {
		return true
	}
	_, ok := f.rules[field]
	return ok
}

// Validate checks a single value outside a Form and returns the first
// failure message, or "".
func (r Rule) Validate(value string) string {
	return r.check("value", value)
}

// check returns the message of the first failing check, or "".
func (r Rule) check(field, value string) string {
	name := r.DisplayName
	if name == "" {
		name = field
	}

	if r.Required && strings.TrimSpace(value) == "" {
		return fmt.Sprintf("%s is required", name)
	}
	length := utf8.RuneCountInString(value)
	if r.MinLength > 0 && length < r.MinLength {
		return fmt.Sprintf("%s must be at least %d characters", name, r.MinLength)
	}
	if r.MaxLength > 0 && length > r.MaxLength {
		return fmt.Sprintf("%s must be at most %d characters", name, r.MaxLength)
	}
	if r.Pattern != nil && !r.Pattern.MatchString(value) {
		return fmt.Sprintf("%s has an invalid format", name)
	}
	if r.Custom != nil {
		if msg := r.Custom(value); msg != "" {
			return msg
		}
	}
	return ""
}

func copyValues[F ~string](src Values[F]) Values[F] {
	dst := make(Values[F], len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
