package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rentum/rentum/internal/domain/services"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
	"github.com/rentum/rentum/pkg/logger"
)

// ScanHandler handles document uploads and their reconciliation
type ScanHandler struct {
	*BaseHandler
	scanService *services.ScanService
}

// NewScanHandler creates a new scan handler
func NewScanHandler(scanService *services.ScanService, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		BaseHandler: NewBaseHandler(log),
		scanService: scanService,
	}
}

// RegisterRoutes sets up the scan routes
func (h *ScanHandler) RegisterRoutes(router *gin.RouterGroup) {
	scans := router.Group("/scans")
	{
		scans.POST("", h.CreateScan)
		scans.GET("/:id", h.GetScan)
		scans.POST("/:id/reconcile", h.ReconcileScan)
	}
}

// CreateScanRequest carries an uploaded document. Content is base64 in JSON.
type CreateScanRequest struct {
	DocumentClass string `json:"document_class" binding:"required"`
	Content       []byte `json:"content" binding:"required"`
	PropertyID    string `json:"property_id,omitempty"`
	AgreementID   string `json:"agreement_id,omitempty"`
}

// CreateScan extracts fields from a document owned by the caller
func (h *ScanHandler) CreateScan(c *gin.Context) {
	caller, ok := h.RequireCaller(c)
	if !ok {
		return
	}

	var req CreateScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondBadRequest(c, "Invalid scan request", err.Error())
		return
	}
	propertyID, err := optionalUUID(req.PropertyID)
	if err != nil {
		h.RespondBadRequest(c, "Invalid property_id format")
		return
	}
	agreementID, err := optionalUUID(req.AgreementID)
	if err != nil {
		h.RespondBadRequest(c, "Invalid agreement_id format")
		return
	}

	result, err := h.scanService.ProcessScan(c.Request.Context(), services.ProcessScanParams{
		UserID:        caller.ID,
		DocumentClass: models.DocumentClass(req.DocumentClass),
		Content:       req.Content,
		PropertyID:    propertyID,
		AgreementID:   agreementID,
	})
	if err != nil {
		h.RespondServiceError(c, err)
		return
	}
	h.RespondCreated(c, result)
}

// GetScan returns a scan visible to the caller
func (h *ScanHandler) GetScan(c *gin.Context) {
	scanID, ok := h.ValidateUUID(c, "scan ID", c.Param("id"))
	if !ok {
		return
	}

	scan, err := h.scanService.GetScanFor(c.Request.Context(), scanID, h.Caller(c))
	if err != nil {
		h.RespondServiceError(c, err)
		return
	}
	h.RespondSuccess(c, scan)
}

// ReconcileScan re-applies a completed scan to its records
func (h *ScanHandler) ReconcileScan(c *gin.Context) {
	caller, ok := h.RequireCaller(c)
	if !ok {
		return
	}
	scanID, ok := h.ValidateUUID(c, "scan ID", c.Param("id"))
	if !ok {
		return
	}

	if _, err := h.scanService.GetScanFor(c.Request.Context(), scanID, caller); err != nil {
		h.RespondServiceError(c, err)
		return
	}
	result, err := h.scanService.Reconcile(c.Request.Context(), scanID)
	if err != nil {
		h.RespondServiceError(c, err)
		return
	}
	h.RespondSuccess(c, result)
}
