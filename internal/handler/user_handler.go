package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-events-api/internal/dto"
	"github.com/noah-isme/school-events-api/internal/models"
	"github.com/noah-isme/school-events-api/internal/service"
	"github.com/noah-isme/school-events-api/pkg/response"
)

type userService interface {
	List(ctx context.Context, claims *models.JWTClaims, filter models.UserFilter) ([]models.User, *models.Pagination, error)
	Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.User, *models.Profile, error)
	Totals(ctx context.Context, claims *models.JWTClaims) (*models.UserTotals, error)
	Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateUserRequest) (*models.User, *models.Profile, error)
	Update(ctx context.Context, claims *models.JWTClaims, req dto.UpdateUserRequest) (*models.User, *models.Profile, error)
	Delete(ctx context.Context, claims *models.JWTClaims, id string) (int64, error)
}

// UserHandler handles principal management endpoints.
type UserHandler struct {
	service userService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

// List godoc
// @Summary List users
// @Description List users with pagination and filtering
// @Tags Users
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param role query string false "Role filter"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope{data=[]dto.UserResponse}
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /users/list [get]
func (h *UserHandler) List(c *gin.Context) {
	var filter models.UserFilter

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	role, err := service.ParseRoleFilter(c.Query("role"))
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.Role = role
	filter.Search = c.Query("search")

	users, pagination, err := h.service.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, dto.NewUserResponse(u, nil))
	}
	response.JSON(c, http.StatusOK, out, pagination)
}

// Get godoc
// @Summary Get user
// @Description Get a user with its profile
// @Tags Users
// @Produce json
// @Param id query string true "User ID"
// @Success 200 {object} response.Envelope{data=dto.UserResponse}
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /users [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, profile, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Query("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewUserResponse(*user, profile), nil)
}

// Totals godoc
// @Summary Count active users per role
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope{data=models.UserTotals}
// @Security BearerAuth
// @Router /users/totals [get]
func (h *UserHandler) Totals(c *gin.Context) {
	totals, err := h.service.Totals(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, totals, nil)
}

// Create godoc
// @Summary Create user
// @Description Create a principal and its profile
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body dto.CreateUserRequest true "User payload"
// @Success 201 {object} response.Envelope{data=dto.UserResponse}
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, malformedBody(err))
		return
	}
	user, profile, err := h.service.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewUserResponse(*user, profile))
}

// Update godoc
// @Summary Update user
// @Description Update names, active flag or profile fields
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body dto.UpdateUserRequest true "Update payload"
// @Success 200 {object} response.Envelope{data=dto.UserResponse}
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /users [put]
func (h *UserHandler) Update(c *gin.Context) {
	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, malformedBody(err))
		return
	}
	user, profile, err := h.service.Update(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewUserResponse(*user, profile), nil)
}

// Delete godoc
// @Summary Delete user
// @Description Delete a principal with its profile and the events it is responsible for
// @Tags Users
// @Produce json
// @Param id query string true "User ID"
// @Success 200 {object} response.Envelope{data=dto.MessageResponse}
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /users [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	removed, err := h.service.Delete(c.Request.Context(), claimsFromContext(c), c.Query("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.MessageResponse{Message: "User deleted successfully"}, nil, map[string]interface{}{"events_deleted": removed})
}
