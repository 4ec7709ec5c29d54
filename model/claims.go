package model

import "github.com/golang-jwt/jwt/v5"

// AppClaims is the payload of an access token.
type AppClaims struct {
	ID    int64    `json:"id"`
	Login string   `json:"login"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}
