package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"smad-api/common"
	"smad-api/logger"
	"smad-api/model"

	"github.com/sirupsen/logrus"
)

// UserManager is the user resource behind UserHandler.
type UserManager interface {
	List(ctx context.Context) ([]*model.User, error)
	Get(ctx context.Context, id int64) (*model.User, error)
	Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error)
	Update(ctx context.Context, id int64, req *model.UpdateUserRequest) (*model.User, error)
	Delete(ctx context.Context, id int64) error
}

type UserHandler struct {
	users UserManager
}

func NewUserHandler(users UserManager) *UserHandler {
	return &UserHandler{users: users}
}

// pathID parses the {id} wildcard. An id that is not a number cannot exist.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, common.NotFoundResource(fmt.Sprintf("Resource with id '%s' does not exist", raw))
	}
	return id, nil
}

// ListUsers godoc
// @Summary      List users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   model.User
// @Failure      401  {object}  common.AppError
// @Failure      403  {object}  common.AppError
// @Router       /api/Users [get]
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) error {
	users, err := h.users.List(r.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, users)
}

// GetUser godoc
// @Summary      Get a user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  model.User
// @Failure      404  {object}  common.AppError
// @Router       /api/Users/{id} [get]
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, user)
}

// CreateUser godoc
// @Summary      Create a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        user  body      model.CreateUserRequest  true  "User"
// @Success      201   {object}  model.User
// @Failure      400   {object}  common.AppError
// @Failure      500   {object}  common.AppError
// @Router       /api/Users [post]
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) error {
	var req model.CreateUserRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	identity, _ := IdentityFromContext(r.Context())
	log := logger.Log.WithField("login", req.Login)
	if identity != nil {
		log = log.WithField("by", identity.Login)
	}
	log.Info("Create user request received")

	user, err := h.users.Create(r.Context(), &req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, user)
}

// UpdateUser godoc
// @Summary      Update a user
// @Description  Only the fields present in the body change
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                      true  "User ID"
// @Param        user  body      model.UpdateUserRequest  true  "Fields to change"
// @Success      200   {object}  model.User
// @Failure      400   {object}  common.AppError
// @Failure      404   {object}  common.AppError
// @Router       /api/Users/{id} [put]
// @Router       /api/Users/{id} [patch]
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	var req model.UpdateUserRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	logger.Log.WithFields(logrus.Fields{"user_id": id}).Info("Update user request received")

	user, err := h.users.Update(r.Context(), id, &req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, user)
}

// DeleteUser godoc
// @Summary      Delete a user
// @Tags         users
// @Security     BearerAuth
// @Param        id   path  int  true  "User ID"
// @Success      204
// @Failure      404  {object}  common.AppError
// @Router       /api/Users/{id} [delete]
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
