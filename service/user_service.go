package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"smad-api/common"
	"smad-api/logger"
	"smad-api/model"
	"smad-api/repository"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// UserService handles user-related business logic.
type UserService struct {
	userRepo repository.IUserRepository
	hasher   *PasswordHasher
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.IUserRepository, hasher *PasswordHasher) *UserService {
	if hasher == nil {
		hasher = NewPasswordHasher(DefaultBcryptCost)
	}
	return &UserService{userRepo: userRepo, hasher: hasher}
}

// hash rejects passwords bcrypt cannot take with a 400 instead of a 500.
func (s *UserService) hash(password string) (string, error) {
	h, err := s.hasher.HashPassword(password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", common.WithStatus(common.CodeValidation, "Invalid fields: Password (max)", http.StatusBadRequest)
		}
		return "", common.Wrap(err)
	}
	return h, nil
}

func notFound(id int64) error {
	return common.NotFoundResource(fmt.Sprintf("Resource with id '%d' does not exist", id))
}

func (s *UserService) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.GetAllUsers(ctx)
	if err != nil {
		return nil, common.Wrap(err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, notFound(id)
		}
		return nil, common.Wrap(err)
	}
	return user, nil
}

// Create stores a new user. Missing roles default to USER and missing
// settings to the default theme.
func (s *UserService) Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Login:    strings.TrimSpace(req.Login),
		Password: hash,
		Roles:    req.Roles,
		Settings: model.Settings{Theme: model.DefaultTheme},
	}
	if len(user.Roles) == 0 {
		user.Roles = []string{model.RoleUser}
	}
	if req.Settings != nil {
		user.Settings = *req.Settings
	}

	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		return nil, common.Wrap(err)
	}
	logger.Log.WithFields(logrus.Fields{"user_id": user.ID, "login": user.Login}).Info("User created")
	return user, nil
}

// Update applies the non-nil fields of req. A new password is re-hashed.
func (s *UserService) Update(ctx context.Context, id int64, req *model.UpdateUserRequest) (*model.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Login != nil {
		user.Login = strings.TrimSpace(*req.Login)
	}
	if req.Password != nil {
		hash, err := s.hash(*req.Password)
		if err != nil {
			return nil, err
		}
		user.Password = hash
	}
	if len(req.Roles) > 0 {
		user.Roles = req.Roles
	}
	if req.Settings != nil {
		user.Settings = *req.Settings
	}

	if err := s.userRepo.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, notFound(id)
		}
		return nil, common.Wrap(err)
	}
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := s.userRepo.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return notFound(id)
		}
		return common.Wrap(err)
	}
	logger.Log.WithField("user_id", id).Info("User deleted")
	return nil
}

// EnsureAdmin creates an ADMIN account with the given credentials unless the
// login already exists. An empty login disables seeding.
func (s *UserService) EnsureAdmin(ctx context.Context, login, password string) error {
	if login == "" || password == "" {
		return nil
	}
	_, err := s.userRepo.GetUserByLogin(ctx, login)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("look up admin %q: %w", login, err)
	}

	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return err
	}
	admin := &model.User{
		Login:    login,
		Password: hash,
		Roles:    []string{model.RoleAdmin, model.RoleUser},
		Settings: model.Settings{Theme: model.DefaultTheme},
	}
	if err := s.userRepo.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("create admin %q: %w", login, err)
	}
	logger.Log.WithField("login", login).Info("Admin user seeded")
	return nil
}
