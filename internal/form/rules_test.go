package form

import "testing"

func TestStandardRules(t *testing.T) {
	tests := []struct {
		name  string
		rule  Rule
		value string
		ok    bool
	}{
		{"email ok", Email, "taro@example.jp", true},
		{"email missing at", Email, "taro.example.jp", false},
		{"email with space", Email, "ta ro@example.jp", false},
		{"email no tld", Email, "taro@example", false},
		{"password short", Password, "1234567", false},
		{"password ok", Password, "12345678", true},
		{"login password any length", LoginPassword, "x", true},
		{"username too short", Username, "a", false},
		{"username too long", Username, "abcdefghijklmnopqrstu", false},
		{"username ok", Username, "hanako", true},
		{"workspace kana and kanji", WorkspaceName, "山田家 じゅけん-2026_A", true},
		{"workspace punctuation", WorkspaceName, "Yamada!", false},
		{"workspace too long", WorkspaceName, "abcdefghijklmnopqrstuvwxyz12345", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(Values[testField]{"v": tt.value}, Rules[testField]{"v": tt.rule})
			if got := f.ValidateField("v"); got != tt.ok {
				t.Errorf("ValidateField(%q) = %v, want %v (error %q)", tt.value, got, tt.ok, f.Error("v"))
			}
		})
	}
}

func TestConfirmPassword(t *testing.T) {
	var f *Form[testField]
	f = New(
		Values[testField]{"password": "secret-pass", "confirm": "secret-pasz"},
		Rules[testField]{
			"password": Password,
			"confirm":  ConfirmPassword(func() string { return f.Value("password") }),
		},
	)

	if f.ValidateField("confirm") {
		t.Fatal("expected mismatch to fail")
	}
	if got := f.Error("confirm"); got != "Passwords do not match" {
		t.Errorf("unexpected message %q", got)
	}

	f.SetValue("confirm", "secret-pass")
	if !f.ValidateField("confirm") {
		t.Errorf("expected match to pass, got %q", f.Error("confirm"))
	}
}
