package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smad-api/common"
	"smad-api/config"
	"smad-api/logger"
	"smad-api/model"
	"smad-api/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Error codes of the login and refresh protocol.
const (
	CodeBadLogin            = "BAD_LOGIN"
	CodeBadPassword         = "BAD_PASSWORD"
	CodeMissingRefreshToken = "MISSING_REFRESH_TOKEN"
	CodeRefreshNotAllowed   = "REFRESH_NOT_ALLOWED"
	CodeUserNotFound        = "USER_NOT_FOUND"
)

const msgUserNotFound = "No user found for login in JWT Token"

// AuthService issues and verifies tokens.
type AuthService struct {
	users  repository.IUserRepository
	hasher *PasswordHasher
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
	now    func() time.Time
}

// NewAuthService fails with config.ErrInvalidConfig when the signing secret
// or the token lifetime is missing.
func NewAuthService(cfg config.JWTConfig, users repository.IUserRepository, hasher *PasswordHasher) (*AuthService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if hasher == nil {
		hasher = NewPasswordHasher(DefaultBcryptCost)
	}
	s := &AuthService{
		users:  users,
		hasher: hasher,
		secret: []byte(cfg.SecretKey),
		ttl:    cfg.TTL(),
		now:    time.Now,
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s, nil
}

// Hasher exposes the password hasher shared with the user service.
func (s *AuthService) Hasher() *PasswordHasher {
	return s.hasher
}

// GenerateAccessToken signs {id, login, roles} with a fixed lifetime.
func (s *AuthService) GenerateAccessToken(user *model.User) (string, error) {
	logger.Log.WithField("login", user.Login).Debug("Generating access token")

	now := s.now()
	claims := &model.AppClaims{
		ID:    user.ID,
		Login: user.Login,
		Roles: user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		logger.Log.WithError(err).WithField("login", user.Login).Error("Failed to sign JWT")
		return "", fmt.Errorf("failed to sign token string: %w", err)
	}
	return tokenString, nil
}

// Login checks the credentials, rotates the stored refresh token and returns
// a fresh token pair with the user's settings.
func (s *AuthService) Login(ctx context.Context, login, password string) (*model.LoginResult, error) {
	log := logger.Log.WithField("login", login)
	log.Debug("Trying to log in user")

	user, err := s.users.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, common.UnauthorizedWith(CodeBadLogin, "Bad login")
		}
		return nil, common.Wrap(err)
	}

	match, err := s.hasher.CheckPasswordHash(password, user.Password)
	if err != nil {
		return nil, common.Wrap(err)
	}
	if !match {
		return nil, common.UnauthorizedWith(CodeBadPassword, "Bad password")
	}

	log.Debug("Creating new refresh token")
	refreshToken := uuid.NewString()
	if err := s.users.UpdateRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return nil, common.Wrap(err)
	}
	user.RefreshToken = refreshToken

	accessToken, err := s.GenerateAccessToken(user)
	if err != nil {
		return nil, common.Wrap(err)
	}

	return &model.LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Settings:     user.Settings,
	}, nil
}

// RefreshToken returns a new access token when presented matches the refresh
// token stored for the identity. The refresh token itself is not rotated.
func (s *AuthService) RefreshToken(ctx context.Context, identity *model.Identity, presented string) (*model.TokenResponse, error) {
	if presented == "" {
		return nil, common.UnauthorizedWith(CodeMissingRefreshToken, "Refresh token's missing")
	}
	if identity == nil {
		return nil, common.FromCode(CodeUserNotFound, msgUserNotFound)
	}

	logger.Log.WithField("login", identity.Login).Debug("Trying to refresh access token")

	user, err := s.users.GetUserByLogin(ctx, identity.Login)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// The caller already passed signature checks: a vanished user is a
			// server-side inconsistency, reported as 500.
			return nil, common.FromCode(CodeUserNotFound, msgUserNotFound)
		}
		return nil, common.Wrap(err)
	}

	// The user record may come from a cache; the token is read from the store.
	stored, err := s.users.GetRefreshToken(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, common.FromCode(CodeUserNotFound, msgUserNotFound)
		}
		return nil, common.Wrap(err)
	}

	if stored == "" || presented != stored {
		return nil, common.UnauthorizedWith(CodeRefreshNotAllowed, "Refresh token has been revoked")
	}

	accessToken, err := s.GenerateAccessToken(user)
	if err != nil {
		return nil, common.Wrap(err)
	}
	return &model.TokenResponse{AccessToken: accessToken}, nil
}

// Verify resolves a raw access token to the identity of an existing user.
// Exactly one outcome is possible: no token, bad signature, expired, user not
// found, or success.
func (s *AuthService) Verify(ctx context.Context, rawToken string) (*model.Identity, error) {
	if rawToken == "" {
		return nil, common.NoToken()
	}

	claims := &model.AppClaims{}
	_, err := s.parser.ParseWithClaims(rawToken, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.TokenExpired()
		}
		logger.Log.WithError(err).Debug("Access token rejected")
		return nil, common.TokenSignature()
	}

	user, err := s.users.GetUserByLogin(ctx, claims.Login)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			logger.Log.WithField("login", claims.Login).Debug("No user found for token payload")
			return nil, common.UnauthorizedWith(CodeUserNotFound, msgUserNotFound)
		}
		logger.Log.WithError(err).WithFields(logrus.Fields{"login": claims.Login}).Error("User lookup failed during authentication")
		return nil, common.Unauthorized()
	}

	return model.IdentityOf(user), nil
}
