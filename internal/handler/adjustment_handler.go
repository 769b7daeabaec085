package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/talimhub/school-ops-api/internal/middleware"
	"github.com/talimhub/school-ops-api/internal/service"
	appErrors "github.com/talimhub/school-ops-api/pkg/errors"
	"github.com/talimhub/school-ops-api/pkg/response"
)

// AdjustmentHandler exposes payroll adjustment endpoints.
type AdjustmentHandler struct {
	adjustments *service.AdjustmentService
}

// NewAdjustmentHandler constructs the handler.
func NewAdjustmentHandler(adjustments *service.AdjustmentService) *AdjustmentHandler {
	return &AdjustmentHandler{adjustments: adjustments}
}

// Apply godoc
// @Summary Apply a payroll adjustment (waive absence or lateness deductions)
// @Tags payroll
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.AdjustmentRequest true "adjustment"
// @Success 200 {object} response.Envelope{data=service.AdjustmentResult}
// @Failure 400 {object} response.Envelope
// @Router /payroll/adjustments [post]
func (h *AdjustmentHandler) Apply(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "malformed request body"))
		return
	}
	req.IPAddress = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	result, err := h.adjustments.ApplyAdjustment(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.CountWaivers(req.AdjustmentType, result.RecordsAffected)
	response.JSON(c, http.StatusOK, result, nil)
}
