// file: model/token.go

package model

// LoginResult is returned by a successful login.
type LoginResult struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	Settings     Settings `json:"settings"`
}

// TokenResponse is returned by a successful refresh.
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
}
