package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rentum/rentum/internal/domain/services"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
	"github.com/rentum/rentum/pkg/logger"
)

// ReviewHandler handles review requests and their responses
type ReviewHandler struct {
	*BaseHandler
	reviewService *services.ReviewService
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(reviewService *services.ReviewService, log *logger.Logger) *ReviewHandler {
	return &ReviewHandler{
		BaseHandler:   NewBaseHandler(log),
		reviewService: reviewService,
	}
}

// RegisterRoutes sets up the review routes
func (h *ReviewHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/review-requests")
	{
		requests.POST("", h.CreateRequest)
		requests.GET("/:id", h.GetRequest)
		requests.POST("/:id/responses", h.SubmitResponse)
		requests.GET("/:id/response", h.GetResponse)
		requests.POST("/:id/expire", h.ExpireRequest)
	}
}

// CreateReviewRequest asks a user, or an email address, for a review
type CreateReviewRequest struct {
	ReviewerRef string `json:"reviewer_ref" binding:"required"`
	RequestType string `json:"request_type" binding:"required"`
	PropertyID  string `json:"property_id,omitempty"`
	Message     string `json:"message" binding:"max=2000"`
}

// SubmitResponseRequest is a reviewer's answer. Ratings are keyed by category.
type SubmitResponseRequest struct {
	Ratings       models.CategoryRatings `json:"ratings" binding:"required"`
	OverallRating int                    `json:"overall_rating" binding:"required"`
	Comments      string                 `json:"comments" binding:"max=5000"`
}

// CreateRequest creates a pending request on behalf of the caller
func (h *ReviewHandler) CreateRequest(c *gin.Context) {
	caller, ok := h.RequireCaller(c)
	if !ok {
		return
	}

	var req CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondBadRequest(c, "Invalid review request", err.Error())
		return
	}
	propertyID, err := optionalUUID(req.PropertyID)
	if err != nil {
		h.RespondBadRequest(c, "Invalid property_id format")
		return
	}

	request, err := h.reviewService.CreateRequest(c.Request.Context(), services.CreateReviewRequestParams{
		RequesterID: caller.ID,
		ReviewerRef: req.ReviewerRef,
		RequestType: models.ReviewRequestType(req.RequestType),
		PropertyID:  propertyID,
		Message:     req.Message,
	})
	if err != nil {
		h.RespondServiceError(c, err)
		return
	}
	h.RespondCreated(c, request)
}

// GetRequest returns a request visible to the caller
func (h *ReviewHandler) GetRequest(c *gin.Context) {
	requestID, ok := h.ValidateUUID(c, "request ID", c.Param("id"))
	if !ok {
		return
	}

	request, err := h.reviewService.GetRequest(c.Request.Context(), requestID, h.Caller(c))
	if err != nil {
		h.RespondServiceError(c, err)
		return
	}
	h.RespondSuccess(c, request)
}

// SubmitResponse records the caller's response and folds it into the subject's profile
func (h *ReviewHandler) SubmitResponse(c *gin.Context) {
	caller, ok := h.RequireCaller(c)
	if !ok {
		return
	}
	requestID, ok := h.ValidateUUID(c, "request ID", c.Param("id"))
	if !ok {
		return
	}

	var req SubmitResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondBadRequest(c, "Invalid review response", err.Error())
		return
	}

	response, err := h.reviewService.SubmitResponse(c.Request.Context(), services.SubmitResponseParams{
		RequestID:     requestID,
		ReviewerID:    caller.ID,
		Ratings:       req.Ratings,
		OverallRating: req.OverallRating,
		Comments:      req.Comments,
	})
	if err != nil {
		h.RespondServiceError(c, err)
		return
	}
	h.RespondCreated(c, response)
}

// GetResponse returns the response recorded for a request
func (h *ReviewHandler) GetResponse(c *gin.Context) {
	requestID, ok := h.ValidateUUID(c, "request ID", c.Param("id"))
	if !ok {
		return
	}

	response, err := h.reviewService.GetResponse(c.Request.Context(), requestID, h.Caller(c))
	if err != nil {
		h.RespondServiceError(c, err)
		return
	}
	h.RespondSuccess(c, response)
}

// ExpireRequest lets the requester withdraw a pending request
func (h *ReviewHandler) ExpireRequest(c *gin.Context) {
	caller, ok := h.RequireCaller(c)
	if !ok {
		return
	}
	requestID, ok := h.ValidateUUID(c, "request ID", c.Param("id"))
	if !ok {
		return
	}

	request, err := h.reviewService.GetRequest(c.Request.Context(), requestID, caller)
	if err != nil {
		h.RespondServiceError(c, err)
		return
	}
	if request.RequesterID != caller.ID && caller.Role != models.UserRoleCompany {
		h.RespondError(c, http.StatusForbidden, "not_authorized", "Only the requester can expire a review request")
		return
	}

	expired, err := h.reviewService.ExpireRequest(c.Request.Context(), requestID)
	if err != nil {
		h.RespondServiceError(c, err)
		return
	}
	h.RespondSuccess(c, expired)
}
