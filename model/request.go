// file: model/request.go

package model

// LoginRequest is the login payload. Fields are not validated: an empty login
// simply matches no user.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// CreateUserRequest is the payload for POST /api/Users.
type CreateUserRequest struct {
	Login    string    `json:"login" validate:"required,notblank,max=100"`
	Password string    `json:"password" validate:"required,max=72"`
	Roles    []string  `json:"roles" validate:"omitempty,min=1,dive,oneof=ADMIN USER"`
	Settings *Settings `json:"settings"`
}

// UpdateUserRequest is the payload for PUT/PATCH /api/Users/{id}. Nil fields are left unchanged.
type UpdateUserRequest struct {
	Login    *string   `json:"login" validate:"omitempty,notblank,max=100"`
	Password *string   `json:"password" validate:"omitempty,min=1,max=72"`
	Roles    []string  `json:"roles" validate:"omitempty,min=1,dive,oneof=ADMIN USER"`
	Settings *Settings `json:"settings"`
}
