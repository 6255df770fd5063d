package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rentum/rentum/internal/domain/services"
	"github.com/rentum/rentum/pkg/logger"
)

// ProfileHandler serves reputation profiles and role-scoped views
type ProfileHandler struct {
	*BaseHandler
	profileService *services.ProfileService
	viewService    *services.ViewService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profileService *services.ProfileService, viewService *services.ViewService, log *logger.Logger) *ProfileHandler {
	return &ProfileHandler{
		BaseHandler:    NewBaseHandler(log),
		profileService: profileService,
		viewService:    viewService,
	}
}

// RegisterRoutes sets up the profile and view routes
func (h *ProfileHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/profiles/:user_id", h.GetProfile)
	router.GET("/views", h.GetView)
}

// GetProfile returns a user's aggregated reputation
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, ok := h.ValidateUUID(c, "user ID", c.Param("user_id"))
	if !ok {
		return
	}

	profile, err := h.profileService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		h.RespondServiceError(c, err)
		return
	}
	h.RespondSuccess(c, profile)
}

// GetView returns the collections the caller is entitled to see
func (h *ProfileHandler) GetView(c *gin.Context) {
	view, err := h.viewService.ScopedView(c.Request.Context(), h.Caller(c))
	if err != nil {
		h.RespondServiceError(c, err)
		return
	}
	h.RespondSuccess(c, view)
}
