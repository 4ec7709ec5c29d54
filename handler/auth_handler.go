package handler

import (
	"context"
	"io"
	"net/http"

	"smad-api/common"
	"smad-api/logger"
	"smad-api/model"

	"github.com/sirupsen/logrus"
)

// RefreshHeader carries the opaque refresh token.
const RefreshHeader = "Refresh"

// Authenticator is the token protocol used by AuthHandler.
type Authenticator interface {
	Login(ctx context.Context, login, password string) (*model.LoginResult, error)
	RefreshToken(ctx context.Context, identity *model.Identity, presented string) (*model.TokenResponse, error)
}

type AuthHandler struct {
	auth     Authenticator
	recorder FailureRecorder
}

func NewAuthHandler(auth Authenticator, recorder FailureRecorder) *AuthHandler {
	return &AuthHandler{auth: auth, recorder: recorder}
}

// Login godoc
// @Summary      Log in
// @Description  Exchanges credentials for an access token and a refresh token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        credentials  body      model.LoginRequest  true  "Credentials"
// @Success      200          {object}  model.LoginResult
// @Failure      401          {object}  common.AppError
// @Failure      429          {object}  common.AppError
// @Router       /api/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) error {
	var req model.LoginRequest
	if err := common.Decode(r, &req); err != nil {
		return err
	}

	result, err := h.auth.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		recordFailure(h.recorder, err)
		return err
	}

	logger.Log.WithField("login", req.Login).Info("User logged in")
	return writeJSON(w, http.StatusOK, result)
}

// Logout godoc
// @Summary      Log out
// @Description  Acknowledges a logout. The stored refresh token stays valid until the next login.
// @Tags         auth
// @Security     BearerAuth
// @Success      204
// @Failure      401  {object}  common.AppError
// @Router       /api/logout [get]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) error {
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// Refresh godoc
// @Summary      Refresh the access token
// @Description  Issues a new access token when the Refresh header matches the stored refresh token
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Param        Refresh  header    string  true  "Refresh token"
// @Success      200      {object}  model.TokenResponse
// @Failure      401      {object}  common.AppError
// @Failure      500      {object}  common.AppError
// @Router       /api/refresh [get]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) error {
	identity, _ := IdentityFromContext(r.Context())
	result, err := h.auth.RefreshToken(r.Context(), identity, r.Header.Get(RefreshHeader))
	if err != nil {
		recordFailure(h.recorder, err)
		return err
	}
	return writeJSON(w, http.StatusOK, result)
}

// Validate godoc
// @Summary      Validate the access token
// @Tags         auth
// @Security     BearerAuth
// @Success      204
// @Failure      401  {object}  common.AppError
// @Router       /api/validate [get]
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) error {
	w.WriteHeader(http.StatusNoContent)
	return nil
}

var clientLogLevels = map[string]logrus.Level{
	"trace": logrus.TraceLevel,
	"debug": logrus.DebugLevel,
	"info":  logrus.InfoLevel,
	"warn":  logrus.WarnLevel,
	"error": logrus.ErrorLevel,
	// fatal is recorded at error level; a client must not stop the server.
	"fatal": logrus.ErrorLevel,
}

// Log godoc
// @Summary      Forward a client log entry
// @Description  Logs the request body at the given level (trace, debug, info, warn, error, fatal)
// @Tags         log
// @Accept       json
// @Param        level  path  string  true  "Log level"
// @Success      204
// @Failure      500  {object}  common.AppError
// @Router       /api/log/{level} [post]
func (h *AuthHandler) Log(w http.ResponseWriter, r *http.Request) error {
	name := r.PathValue("level")
	level, ok := clientLogLevels[name]
	if !ok {
		return common.FromMessage(name + " is not a valid log level")
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		return common.Wrap(err)
	}
	logger.Log.WithFields(logrus.Fields{
		"source":       "client",
		"client_level": name,
		"req_id":       common.RequestIDFromContext(r.Context()),
	}).Log(level, string(body))

	w.WriteHeader(http.StatusNoContent)
	return nil
}
