package auth

import "fmt"

// Role is the closed set of account roles.
type Role string

const (
	// RoleUser may manage only its own tokens.
	RoleUser Role = "user"
	// RoleAdmin may revoke the tokens of any account.
	RoleAdmin Role = "admin"
)

// ParseRole converts a stored role name into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), nil
	case "":
		return RoleUser, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// IsAdmin reports whether the role carries administrator authority.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Credential is what a caller presents to authenticate: either a
// BearerCredential or a PasswordCredential.
type Credential interface {
	isCredential()
}

// BearerCredential carries a previously issued token secret.
type BearerCredential struct {
	Token string
}

// PasswordCredential carries a username and password pair.
type PasswordCredential struct {
	Username string
	Password string
}

func (BearerCredential) isCredential()   {}
func (PasswordCredential) isCredential() {}

// Method names the credential kind, for logs and metrics.
func Method(c Credential) string {
	switch c.(type) {
	case BearerCredential:
		return "token"
	case PasswordCredential:
		return "password"
	default:
		return "unknown"
	}
}

// Outcome is the result of a successful authentication. It lives for one request.
type Outcome struct {
	User *User
	// ViaToken is true when the caller presented a token rather than a password.
	ViaToken bool
	// Token is the matched token when ViaToken is true.
	Token *Token
}
