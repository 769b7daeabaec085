package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/talimhub/school-ops-api/internal/middleware"
	"github.com/talimhub/school-ops-api/internal/service"
	appErrors "github.com/talimhub/school-ops-api/pkg/errors"
	"github.com/talimhub/school-ops-api/pkg/response"
)

// SubscriptionHandler exposes subscription finalization endpoints.
type SubscriptionHandler struct {
	subscriptions *service.SubscriptionService
}

// NewSubscriptionHandler constructs the handler.
func NewSubscriptionHandler(subscriptions *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

// Finalize godoc
// @Summary Link a completed checkout's subscription to a student
// @Tags subscriptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.FinalizeSubscriptionRequest true "finalize"
// @Success 200 {object} response.Envelope{data=service.FinalizeResult}
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /subscriptions/finalize [post]
func (h *SubscriptionHandler) Finalize(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.FinalizeSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "malformed request body"))
		return
	}
	req.IPAddress = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	result, err := h.subscriptions.Finalize(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListForStudent godoc
// @Summary List a student's subscription links
// @Tags subscriptions
// @Produce json
// @Security BearerAuth
// @Param studentId path int true "student id"
// @Success 200 {object} response.Envelope{data=[]models.StudentSubscription}
// @Router /students/{studentId}/subscriptions [get]
func (h *SubscriptionHandler) ListForStudent(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	studentID, err := strconv.ParseInt(c.Param("studentId"), 10, 64)
	if err != nil || studentID <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid student id"))
		return
	}

	subs, err := h.subscriptions.ListForStudent(c.Request.Context(), claims, studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subs, nil)
}
