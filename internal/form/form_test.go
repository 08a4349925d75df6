package form

import (
	"errors"
	"net/http"
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/keyxmakerx/juken/internal/apperror"
)

type testField string

const (
	fieldEmail    testField = "email"
	fieldPassword testField = "password"
	fieldNickname testField = "nickname"
	fieldNote     testField = "note"
)

func newTestForm() *Form[testField] {
	return New(
		Values[testField]{
			fieldEmail:    "",
			fieldPassword: "",
			fieldNote:     "hello",
		},
		Rules[testField]{
			fieldEmail:    Email,
			fieldPassword: {Required: true, MinLength: 8, DisplayName: "Password"},
		},
	)
}

func TestReset_RestoresInitialValues(t *testing.T) {
	f := newTestForm()
	initial := f.Values()

	f.SetValue(fieldEmail, "a@example.com")
	f.SetValues(Values[testField]{fieldPassword: "x", fieldNote: "changed"})
	f.ValidateAll()
	f.SetSubmitting(true)

	f.Reset()

	if diff := cmp.Diff(initial, f.Values()); diff != "" {
		t.Errorf("values after reset mismatch (-want +got):\n%s", diff)
	}
	if f.HasErrors() {
		t.Errorf("expected no errors after reset, got %v", f.Errors())
	}
	if f.IsSubmitting() {
		t.Error("expected submitting to be false after reset")
	}
}

func TestReset_InitialSnapshotIsIsolated(t *testing.T) {
	initial := Values[testField]{fieldEmail: "first@example.com"}
	f := New(initial, Rules[testField]{fieldEmail: Email})

	initial[fieldEmail] = "mutated@example.com"
	f.SetValue(fieldEmail, "typed@example.com")
	f.Reset()

	if got := f.Value(fieldEmail); got != "first@example.com" {
		t.Errorf("expected original snapshot, got %q", got)
	}
}

func TestValidateField_RequiredCheckedBeforeLength(t *testing.T) {
	f := newTestForm()

	if f.ValidateField(fieldPassword) {
		t.Fatal("expected empty password to fail")
	}
	if got := f.Error(fieldPassword); got != "Password is required" {
		t.Errorf("expected required message, got %q", got)
	}
}

func TestValidateField_CheckOrder(t *testing.T) {
	digits := regexp.MustCompile(`^[0-9]+$`)
	tests := []struct {
		name  string
		rule  Rule
		value string
		want  string
	}{
		{"whitespace is empty", Rule{Required: true}, "   ", "code is required"},
		{"min length", Rule{MinLength: 4}, "12", "code must be at least 4 characters"},
		{"max length", Rule{MaxLength: 3}, "12345", "code must be at most 3 characters"},
		{"pattern", Rule{Pattern: digits}, "12a", "code has an invalid format"},
		{"custom", Rule{Custom: func(string) string { return "nope" }}, "123", "nope"},
		{"min before pattern", Rule{MinLength: 4, Pattern: digits}, "ab", "code must be at least 4 characters"},
		{"display name", Rule{Required: true, DisplayName: "Code"}, "", "Code is required"},
		{"runes not bytes", Rule{MaxLength: 3}, "あいう", ""},
		{"passes", Rule{Required: true, MinLength: 1, Pattern: digits}, "42", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(Values[testField]{"code": tt.value}, Rules[testField]{"code": tt.rule})
			ok := f.ValidateField("code")
			if ok != (tt.want == "") {
				t.Errorf("ValidateField = %v, want %v", ok, tt.want == "")
			}
			if got := f.Error("code"); got != tt.want {
				t.Errorf("error = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateField_NoRulePasses(t *testing.T) {
	f := newTestForm()
	if !f.ValidateField(fieldNote) {
		t.Error("expected field without rule to pass")
	}
	if !f.ValidateField(fieldNickname) {
		t.Error("expected unknown field to pass")
	}
}

func TestValidateField_PassClearsError(t *testing.T) {
	f := newTestForm()
	f.ValidateField(fieldEmail)
	if f.Error(fieldEmail) == "" {
		t.Fatal("expected an error for empty email")
	}

	f.SetValue(fieldEmail, "ok@example.com")
	if !f.ValidateField(fieldEmail) {
		t.Fatal("expected valid email to pass")
	}
	if f.Error(fieldEmail) != "" {
		t.Error("expected error to be cleared")
	}
}

func TestValidateAll_ReportsEveryField(t *testing.T) {
	f := newTestForm()

	if f.ValidateAll() {
		t.Fatal("expected ValidateAll to fail")
	}
	want := map[testField]string{
		fieldEmail:    "Email is required",
		fieldPassword: "Password is required",
	}
	if diff := cmp.Diff(want, f.Errors()); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateAll_AllValid(t *testing.T) {
	f := newTestForm()
	f.SetValues(Values[testField]{fieldEmail: "a@b.jp", fieldPassword: "longenough"})
	if !f.ValidateAll() {
		t.Errorf("expected valid form, errors: %v", f.Errors())
	}
	if f.Err() != nil {
		t.Errorf("expected nil Err, got %v", f.Err())
	}
}

func TestSetValue_ClearsErrorWithoutRevalidating(t *testing.T) {
	f := newTestForm()
	f.ValidateAll()

	f.SetValue(fieldPassword, "short")
	if f.Error(fieldPassword) != "" {
		t.Error("expected typing to clear the error")
	}
	if f.Error(fieldEmail) == "" {
		t.Error("expected other field errors to stay")
	}
}

func TestSetValue_UnknownFieldIsNoop(t *testing.T) {
	f := newTestForm()
	before := f.Values()
	f.SetValue(fieldNickname, "ghost")
	if diff := cmp.Diff(before, f.Values()); diff != "" {
		t.Errorf("unknown field changed values (-want +got):\n%s", diff)
	}
}

func TestFieldProps(t *testing.T) {
	f := New(Values[testField]{}, Rules[testField]{fieldEmail: Email})

	props := f.FieldProps(fieldEmail)
	if props.Value != "" {
		t.Errorf("expected empty string for absent value, got %q", props.Value)
	}
	if props.Name != fieldEmail {
		t.Errorf("expected name %q, got %q", fieldEmail, props.Name)
	}

	f.ValidateField(fieldEmail)
	props = f.FieldProps(fieldEmail)
	if props.Error != "Email is required" {
		t.Errorf("expected error in props, got %q", props.Error)
	}

	props.OnChange("me@example.com")
	if f.Value(fieldEmail) != "me@example.com" {
		t.Errorf("OnChange did not update value, got %q", f.Value(fieldEmail))
	}
	if f.Error(fieldEmail) != "" {
		t.Error("OnChange should clear the field error")
	}
}

func TestSetError_OnlyRuleFields(t *testing.T) {
	f := newTestForm()
	f.SetError(fieldNote, "not tracked")
	if f.HasErrors() {
		t.Error("expected error on rule-less field to be ignored")
	}

	f.SetError(fieldEmail, "server says no")
	if f.Error(fieldEmail) != "server says no" {
		t.Errorf("unexpected error %q", f.Error(fieldEmail))
	}
	f.ClearError(fieldEmail)
	if f.HasErrors() {
		t.Error("expected ClearError to remove the error")
	}

	f.ValidateAll()
	f.ClearAllErrors()
	if f.HasErrors() {
		t.Error("expected ClearAllErrors to remove every error")
	}
}

func TestErr_ConvertsToFieldErrors(t *testing.T) {
	f := newTestForm()
	f.ValidateAll()

	err := FieldErrors(f.Err())
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T", err)
	}
	if appErr.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", appErr.Code)
	}
	want := map[string]string{
		"email":    "Email is required",
		"password": "Password is required",
	}
	if diff := cmp.Diff(want, appErr.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}
