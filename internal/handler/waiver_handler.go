package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/talimhub/school-ops-api/internal/middleware"
	"github.com/talimhub/school-ops-api/internal/models"
	"github.com/talimhub/school-ops-api/internal/service"
	appErrors "github.com/talimhub/school-ops-api/pkg/errors"
	"github.com/talimhub/school-ops-api/pkg/response"
)

// WaiverHandler exposes waiver listing and payroll export endpoints.
type WaiverHandler struct {
	waivers *service.WaiverService
}

// NewWaiverHandler constructs the handler.
func NewWaiverHandler(waivers *service.WaiverService) *WaiverHandler {
	return &WaiverHandler{waivers: waivers}
}

// List godoc
// @Summary List deduction waivers
// @Tags payroll
// @Produce json
// @Security BearerAuth
// @Param teacherId query string false "filter by teacher"
// @Param type query string false "absence or lateness"
// @Param from query string false "YYYY-MM-DD lower bound"
// @Param to query string false "YYYY-MM-DD upper bound"
// @Param page query int false "page"
// @Param pageSize query int false "page size"
// @Success 200 {object} response.Envelope{data=[]models.DeductionWaiver}
// @Router /payroll/waivers [get]
func (h *WaiverHandler) List(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.WaiverFilter{
		TeacherID:     c.Query("teacherId"),
		DeductionType: models.DeductionType(c.Query("type")),
	}
	if raw := c.Query("from"); raw != "" {
		date, err := models.ParseBusinessDate(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid from date"))
			return
		}
		filter.DateFrom = date
	}
	if raw := c.Query("to"); raw != "" {
		date, err := models.ParseBusinessDate(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid to date"))
			return
		}
		filter.DateTo = date
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "50"))

	waivers, total, err := h.waivers.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, waivers, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Export godoc
// @Summary Export waived deductions for payroll reconciliation
// @Tags payroll
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param from query string true "YYYY-MM-DD lower bound"
// @Param to query string true "YYYY-MM-DD upper bound"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /payroll/waivers/export [get]
func (h *WaiverHandler) Export(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	from, err := models.ParseBusinessDate(c.Query("from"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid from date"))
		return
	}
	to, err := models.ParseBusinessDate(c.Query("to"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid to date"))
		return
	}
	format := c.DefaultQuery("format", service.ExportFormatCSV)

	data, contentType, err := h.waivers.ExportPayroll(c.Request.Context(), claims, from, to, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	ext := "csv"
	if format == service.ExportFormatPDF {
		ext = "pdf"
	}
	filename := fmt.Sprintf("waivers_%s_%s.%s", from.String(), to.String(), ext)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}
