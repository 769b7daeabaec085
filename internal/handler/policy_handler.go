package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/talimhub/school-ops-api/internal/middleware"
	"github.com/talimhub/school-ops-api/internal/service"
	appErrors "github.com/talimhub/school-ops-api/pkg/errors"
	"github.com/talimhub/school-ops-api/pkg/response"
)

// PolicyHandler exposes deduction-policy administration endpoints.
type PolicyHandler struct {
	policies *service.PolicyService
}

// NewPolicyHandler constructs the handler.
func NewPolicyHandler(policies *service.PolicyService) *PolicyHandler {
	return &PolicyHandler{policies: policies}
}

// Get godoc
// @Summary Fetch the school's resolved deduction policy
// @Tags payroll
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=models.DeductionPolicy}
// @Router /payroll/policy [get]
func (h *PolicyHandler) Get(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	policy, err := h.policies.Resolve(c.Request.Context(), claims.SchoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policy, nil)
}

// Update godoc
// @Summary Update package rates, lateness tiers or school settings
// @Tags payroll
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.UpdatePolicyRequest true "policy changes"
// @Success 200 {object} response.Envelope{data=models.DeductionPolicy}
// @Failure 400 {object} response.Envelope
// @Router /payroll/policy [put]
func (h *PolicyHandler) Update(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "malformed request body"))
		return
	}

	policy, err := h.policies.Update(c.Request.Context(), claims.SchoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policy, nil)
}
