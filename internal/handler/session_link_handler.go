package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/talimhub/school-ops-api/internal/middleware"
	"github.com/talimhub/school-ops-api/internal/models"
	"github.com/talimhub/school-ops-api/internal/service"
	appErrors "github.com/talimhub/school-ops-api/pkg/errors"
	"github.com/talimhub/school-ops-api/pkg/response"
)

// SessionLinkHandler exposes session-link dispatch endpoints.
type SessionLinkHandler struct {
	links *service.SessionLinkService
}

// NewSessionLinkHandler constructs the handler.
func NewSessionLinkHandler(links *service.SessionLinkService) *SessionLinkHandler {
	return &SessionLinkHandler{links: links}
}

// Dispatch godoc
// @Summary Send a session join link to a student
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.DispatchRequest true "dispatch"
// @Success 201 {object} response.Envelope{data=models.SessionLink}
// @Failure 400 {object} response.Envelope
// @Router /sessions/links [post]
func (h *SessionLinkHandler) Dispatch(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "malformed request body"))
		return
	}
	req.IPAddress = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	link, err := h.links.Dispatch(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// List godoc
// @Summary List session links
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param teacherId query string false "filter by teacher"
// @Param studentId query int false "filter by student"
// @Param from query string false "RFC3339 lower bound on sent_at"
// @Param to query string false "RFC3339 upper bound on sent_at"
// @Param page query int false "page"
// @Param pageSize query int false "page size"
// @Success 200 {object} response.Envelope{data=[]models.SessionLink}
// @Router /sessions/links [get]
func (h *SessionLinkHandler) List(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.SessionLinkFilter{
		TeacherID: c.Query("teacherId"),
	}
	if raw := c.Query("studentId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid student id"))
			return
		}
		filter.StudentID = id
	}
	if raw := c.Query("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid from timestamp"))
			return
		}
		filter.DateFrom = &ts
	}
	if raw := c.Query("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid to timestamp"))
			return
		}
		filter.DateTo = &ts
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "50"))

	links, total, err := h.links.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, links, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}
