package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"smad-api/logger"
	"smad-api/model"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// IUserRepository defines the contract for user persistence.
type IUserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetAllUsers(ctx context.Context) ([]*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	UpdateRefreshToken(ctx context.Context, id int64, refreshToken string) error
	GetRefreshToken(ctx context.Context, id int64) (string, error)
	DeleteUser(ctx context.Context, id int64) error
}

// UserRepository implements IUserRepository on PostgreSQL.
type UserRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

const userColumns = `id, login, password, roles, COALESCE(refresh_token, ''), settings`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var roles pq.StringArray
	var settings []byte
	if err := row.Scan(&user.ID, &user.Login, &user.Password, &roles, &user.RefreshToken, &settings); err != nil {
		return nil, err
	}
	user.Roles = []string(roles)
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &user.Settings); err != nil {
			return nil, fmt.Errorf("decode settings of user %d: %w", user.ID, err)
		}
	}
	return user, nil
}

// CreateUser inserts a user and fills its generated ID.
func (r *UserRepository) CreateUser(ctx context.Context, user *model.User) error {
	log := logger.Log.WithFields(logrus.Fields{
		"login": user.Login,
		"roles": user.Roles,
	})
	log.Debug("Executing query to create a new user")

	settings, err := json.Marshal(user.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	query := `INSERT INTO users (login, password, roles, settings) VALUES ($1, $2, $3, $4) RETURNING id`
	err = r.DB.QueryRowContext(ctx, query, user.Login, user.Password, pq.Array(user.Roles), settings).Scan(&user.ID)
	if err != nil {
		log.WithError(err).Error("Failed to execute create user query")
		return err
	}
	return nil
}

// GetUserByLogin returns ErrUserNotFound when the login is unknown.
func (r *UserRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	log := logger.Log.WithField("login", login)
	log.Debug("Executing query to get user by login")

	query := `SELECT ` + userColumns + ` FROM users WHERE login = $1`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, login))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		log.WithError(err).Error("Failed to execute get user by login query")
		return nil, err
	}
	return user, nil
}

// GetUserByID returns ErrUserNotFound when the id is unknown.
func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	log := logger.Log.WithField("user_id", id)
	log.Debug("Executing query to get user by ID")

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		log.WithError(err).Error("Failed to execute get user by ID query")
		return nil, err
	}
	return user, nil
}

// GetAllUsers lists users ordered by id.
func (r *UserRepository) GetAllUsers(ctx context.Context) ([]*model.User, error) {
	log := logger.Log
	log.Debug("Executing query to get all users")

	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		log.WithError(err).Error("Failed to execute query for all users")
		return nil, err
	}
	defer rows.Close()

	users := []*model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			log.WithError(err).Error("Failed to scan user row")
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateUser writes login, password hash, roles and settings of an existing user.
func (r *UserRepository) UpdateUser(ctx context.Context, user *model.User) error {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id": user.ID,
		"login":   user.Login,
	})
	log.Debug("Executing query to update user")

	settings, err := json.Marshal(user.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	query := `UPDATE users SET login = $1, password = $2, roles = $3, settings = $4, updated_at = NOW() WHERE id = $5`
	res, err := r.DB.ExecContext(ctx, query, user.Login, user.Password, pq.Array(user.Roles), settings, user.ID)
	if err != nil {
		log.WithError(err).Error("Failed to execute update user query")
		return err
	}
	return expectOneRow(res)
}

// UpdateRefreshToken overwrites the stored refresh token; the last write wins.
func (r *UserRepository) UpdateRefreshToken(ctx context.Context, id int64, refreshToken string) error {
	log := logger.Log.WithField("user_id", id)
	log.Debug("Executing query to update refresh token")

	query := `UPDATE users SET refresh_token = $1 WHERE id = $2`
	res, err := r.DB.ExecContext(ctx, query, refreshToken, id)
	if err != nil {
		log.WithError(err).Error("Failed to execute update refresh token query")
		return err
	}
	return expectOneRow(res)
}

// GetRefreshToken reads the stored refresh token of a user, empty when none
// was issued.
func (r *UserRepository) GetRefreshToken(ctx context.Context, id int64) (string, error) {
	log := logger.Log.WithField("user_id", id)
	log.Debug("Executing query to get refresh token")

	var token string
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(refresh_token, '') FROM users WHERE id = $1`, id).Scan(&token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrUserNotFound
		}
		log.WithError(err).Error("Failed to execute get refresh token query")
		return "", err
	}
	return token, nil
}

// DeleteUser removes a user; ErrUserNotFound when nothing was deleted.
func (r *UserRepository) DeleteUser(ctx context.Context, id int64) error {
	log := logger.Log.WithField("user_id", id)
	log.Debug("Executing query to delete user")

	res, err := r.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		log.WithError(err).Error("Failed to execute delete user query")
		return err
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
