package form

import "regexp"

var (
	emailPattern         = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	workspaceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9\x{3040}-\x{309F}\x{30A0}-\x{30FF}\x{4E00}-\x{9FAF}\s\-_]+$`)
)

// Password length bounds shared by sign-up and password reset.
const (
	PasswordMinLength      = 8
	UsernameMinLength      = 2
	UsernameMaxLength      = 20
	WorkspaceNameMaxLength = 30
)

// Standard rules used by the auth and workspace forms.
var (
	Email = Rule{
		Required:    true,
		Pattern:     emailPattern,
		DisplayName: "Email",
	}

	Password = Rule{
		Required:    true,
		MinLength:   PasswordMinLength,
		DisplayName: "Password",
	}

	// LoginPassword only requires presence. Length rules on sign-in would
	// tell an attacker something about the password policy for free.
	LoginPassword = Rule{
		Required:    true,
		DisplayName: "Password",
	}

	Username = Rule{
		Required:    true,
		MinLength:   UsernameMinLength,
		MaxLength:   UsernameMaxLength,
		DisplayName: "Username",
	}

	WorkspaceName = Rule{
		Required:    true,
		MaxLength:   WorkspaceNameMaxLength,
		Pattern:     workspaceNamePattern,
		DisplayName: "Workspace name",
	}
)

// ConfirmPassword builds the confirmation rule. password is read at
// validation time so it sees the form's current password value.
func ConfirmPassword(password func() string) Rule {
	return Rule{
		Required:    true,
		DisplayName: "Password confirmation",
		Custom: func(value string) string {
			if value != password() {
				return "Passwords do not match"
			}
			return ""
		},
	}
}
