package model

// Role names used for coarse authorization checks.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// DefaultTheme is applied to users created without settings.
const DefaultTheme = "theme-default"

type Settings struct {
	Theme string `json:"theme"`
}

// User is the stored account. Password holds the bcrypt hash and, like the
// refresh token, is never serialized.
type User struct {
	ID           int64    `json:"id"`
	Login        string   `json:"login"`
	Password     string   `json:"-"`
	Roles        []string `json:"roles"`
	RefreshToken string   `json:"-"`
	Settings     Settings `json:"settings"`
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	ID    int64    `json:"id"`
	Login string   `json:"login"`
	Roles []string `json:"roles"`
}

// IdentityOf builds the identity of a stored user.
func IdentityOf(u *User) *Identity {
	roles := make([]string, len(u.Roles))
	copy(roles, u.Roles)
	return &Identity{ID: u.ID, Login: u.Login, Roles: roles}
}
