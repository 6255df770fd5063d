package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rentum/rentum/internal/app/middleware"
	"github.com/rentum/rentum/internal/domain/apperrors"
	"github.com/rentum/rentum/internal/domain/services"
	"github.com/rentum/rentum/pkg/logger"
)

// BaseHandler provides common functionality for all handlers
type BaseHandler struct {
	config *HandlerConfig
	logger *logger.Logger
}

// NewBaseHandler creates a new base handler
func NewBaseHandler(log *logger.Logger) *BaseHandler {
	return &BaseHandler{
		config: NewHandlerConfig(),
		logger: log,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Details string `json:"details,omitempty"`
}

// Caller returns the request identity, nil when anonymous
func (b *BaseHandler) Caller(c *gin.Context) *services.Caller {
	return middleware.GetCaller(c)
}

// RequireCaller extracts the caller and responds 401 when there is none
func (b *BaseHandler) RequireCaller(c *gin.Context) (*services.Caller, bool) {
	caller := middleware.GetCaller(c)
	if caller == nil {
		b.RespondUnauthorized(c, "Caller identity required")
		return nil, false
	}
	return caller, true
}

// RespondError sends a standardized error response
func (b *BaseHandler) RespondError(c *gin.Context, statusCode int, errorCode, message string, details ...string) {
	response := ErrorResponse{
		Error:   errorCode,
		Message: message,
		Status:  statusCode,
	}

	// Include details based on environment
	if len(details) > 0 && b.config.EnableDebugErrors {
		response.Details = details[0]
	}

	c.JSON(statusCode, response)
}

// RespondServiceError maps an engine error onto its HTTP status
func (b *BaseHandler) RespondServiceError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError && b.logger != nil {
		b.logger.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", GetRequestID(c),
			"error", err,
		)
	}
	if status == http.StatusInternalServerError {
		b.RespondInternalError(c, "Internal server error", err.Error())
		return
	}
	b.RespondError(c, status, code, err.Error())
}

func statusFor(err error) (int, string) {
	switch kind := apperrors.Kind(err); {
	case errors.Is(kind, apperrors.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(kind, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(kind, apperrors.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(kind, apperrors.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(kind, apperrors.ErrNotAuthorized):
		return http.StatusForbidden, "not_authorized"
	case errors.Is(kind, apperrors.ErrExtractionFailure):
		return http.StatusUnprocessableEntity, "extraction_failure"
	case errors.Is(kind, apperrors.ErrDependencyFailure):
		return http.StatusServiceUnavailable, "dependency_failure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// RespondUnauthorized sends a standardized unauthorized response
func (b *BaseHandler) RespondUnauthorized(c *gin.Context, message string) {
	b.RespondError(c, http.StatusUnauthorized, "unauthorized", message)
}

// RespondBadRequest sends a standardized bad request response
func (b *BaseHandler) RespondBadRequest(c *gin.Context, message string, details ...string) {
	b.RespondError(c, http.StatusBadRequest, "invalid_request", message, details...)
}

// RespondInternalError sends a standardized internal server error response
func (b *BaseHandler) RespondInternalError(c *gin.Context, message string, details ...string) {
	b.RespondError(c, http.StatusInternalServerError, "internal_error", message, details...)
}

// RespondSuccess sends a standardized success response
func (b *BaseHandler) RespondSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// RespondCreated sends a standardized created response
func (b *BaseHandler) RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// ValidateUUID validates UUID parameter and responds with error if invalid
func (b *BaseHandler) ValidateUUID(c *gin.Context, paramName, uuidStr string) (uuid.UUID, bool) {
	id, err := uuid.Parse(uuidStr)
	if err != nil {
		b.RespondBadRequest(c, "Invalid "+paramName+" format")
		return uuid.Nil, false
	}
	return id, true
}
