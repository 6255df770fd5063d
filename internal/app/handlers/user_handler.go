package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rentum/rentum/internal/domain/services"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
	"github.com/rentum/rentum/pkg/logger"
)

// UserHandler handles registration and user lookup
type UserHandler struct {
	*BaseHandler
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, log *logger.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(log),
		userService: userService,
	}
}

// RegisterRoutes sets up the user routes
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users")
	{
		users.POST("", h.Register)
		users.GET("/:id", h.GetUser)
	}
}

// RegisterUserRequest contains registration data
type RegisterUserRequest struct {
	Name  string `json:"name" binding:"required,max=255"`
	Email string `json:"email" binding:"required"`
	Phone string `json:"phone,omitempty" binding:"max=50"`
	Role  string `json:"role" binding:"required"`
}

// Register creates a user and binds pending invitations addressed to them
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondBadRequest(c, "Invalid registration request", err.Error())
		return
	}

	user, err := h.userService.Register(c.Request.Context(), services.RegisterUserParams{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
		Role:  models.UserRole(req.Role),
	})
	if err != nil {
		h.RespondServiceError(c, err)
		return
	}
	h.RespondCreated(c, user)
}

// GetUser returns a user by id
func (h *UserHandler) GetUser(c *gin.Context) {
	userID, ok := h.ValidateUUID(c, "user ID", c.Param("id"))
	if !ok {
		return
	}

	user, err := h.userService.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.RespondServiceError(c, err)
		return
	}
	h.RespondSuccess(c, user)
}
