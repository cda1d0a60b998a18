package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/otp-auth-service/internal/core/domain"
	"github.com/arklim/otp-auth-service/internal/usecase"
)

// UserAdministration lists and deletes user records.
type UserAdministration interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	DeleteUser(ctx context.Context, email string) error
}

// UserHandler exposes the administrative user endpoints.
type UserHandler struct {
	users UserAdministration
}

// NewUserHandler constructs UserHandler.
func NewUserHandler(users UserAdministration) *UserHandler {
	return &UserHandler{users: users}
}

// RegisterRoutes binds the user administration endpoints behind the supplied guard.
func (h *UserHandler) RegisterRoutes(r *gin.RouterGroup, guard gin.HandlerFunc) {
	group := r.Group("/users", guard)
	group.GET("", h.List)
	group.DELETE("/:email", h.Delete)
}

// List godoc
// @Summary List registered users
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "Failed to fetch users.")
		return
	}

	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, newUserView(u))
	}

	c.JSON(http.StatusOK, UserListResponse{Success: true, Users: views})
}

// Delete godoc
// @Summary Delete a user by email
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param email path string true "User email"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /users/{email} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	email := strings.TrimSpace(c.Param("email"))

	err := h.users.DeleteUser(c.Request.Context(), email)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrValidation, Status: http.StatusBadRequest, Message: "Email parameter is required for deletion."},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "User with this email not found."},
		}, http.StatusInternalServerError, "Failed to delete user from database.")
		return
	}

	c.JSON(http.StatusOK, okMessage(fmt.Sprintf("User %s deleted successfully.", email)))
}
