package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edupoint-id/portal-api/internal/service"
	appErrors "github.com/edupoint-id/portal-api/pkg/errors"
	"github.com/edupoint-id/portal-api/pkg/response"
)

// AttendanceHandler manages attendance endpoints.
type AttendanceHandler struct {
	service   *service.AttendanceService
	schedules *service.ScheduleService
	exports   *service.ExportService
}

// NewAttendanceHandler constructs handler. schedules is used to invalidate
// cached views after mutations; exports may be nil when exports are disabled.
func NewAttendanceHandler(svc *service.AttendanceService, schedules *service.ScheduleService, exports *service.ExportService) *AttendanceHandler {
	return &AttendanceHandler{service: svc, schedules: schedules, exports: exports}
}

// Mark godoc
// @Summary Mark, update or clear an attendance record
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.MarkAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if req.Clear {
		if err := h.service.Clear(c.Request.Context(), req); err != nil {
			response.Error(c, err)
			return
		}
		h.invalidate(c, req.StudentID)
		response.NoContent(c)
		return
	}

	record, err := h.service.Mark(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidate(c, req.StudentID)
	response.JSON(c, http.StatusOK, record, nil)
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param classId query string false "Filter by class"
// @Param status query string false "Filter by status"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AttendanceListRequest
	req.StudentID = c.Query("studentId")
	req.ClassID = c.Query("classId")
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}
	from, to, err := parseDateRange(c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	req.DateFrom = from
	req.DateTo = to
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		req.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		req.PageSize = limit
	}
	req.SortBy = c.Query("sort")
	req.SortOrder = c.Query("order")

	rows, pagination, err := h.service.List(c.Request.Context(), claims.UserID, claims.Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// Summary godoc
// @Summary Attendance summary for one student
// @Tags Attendance
// @Produce json
// @Param studentId query string true "Student ID"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/summary [get]
func (h *AttendanceHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	from, to, err := parseDateRange(c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), claims.UserID, claims.Role, c.Query("studentId"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Export godoc
// @Summary Export attendance as CSV or PDF
// @Tags Attendance
// @Produce octet-stream
// @Param sheet query string true "class or student"
// @Param format query string false "csv or pdf"
// @Param classId query string false "Class ID (sheet=class)"
// @Param date query string false "Date (sheet=class, default today)"
// @Param studentId query string false "Student ID (sheet=student)"
// @Param from query string false "Start date (sheet=student)"
// @Param to query string false "End date (sheet=student)"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	var (
		result *service.ExportResult
		err    error
	)
	switch c.Query("sheet") {
	case "class":
		date := time.Now().UTC()
		if raw := c.Query("date"); raw != "" {
			date, err = time.Parse("2006-01-02", raw)
			if err != nil {
				response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
				return
			}
		}
		result, err = h.exports.ClassAttendanceSheet(c.Request.Context(), claims.UserID, claims.Role, c.Query("classId"), date, format)
	case "student":
		var from, to *time.Time
		from, to, err = parseDateRange(c.Query("from"), c.Query("to"))
		if err != nil {
			response.Error(c, err)
			return
		}
		result, err = h.exports.StudentSummarySheet(c.Request.Context(), claims.UserID, claims.Role, c.Query("studentId"), from, to, format)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "sheet must be class or student"))
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+result.Filename)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

func (h *AttendanceHandler) invalidate(c *gin.Context, studentID string) {
	if h.schedules == nil {
		return
	}
	h.schedules.InvalidateStudent(c.Request.Context(), studentID)
}

func parseDateRange(fromRaw, toRaw string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if fromRaw != "" {
		parsed, err := time.Parse("2006-01-02", fromRaw)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD")
		}
		from = &parsed
	}
	if toRaw != "" {
		parsed, err := time.Parse("2006-01-02", toRaw)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD")
		}
		to = &parsed
	}
	return from, to, nil
}
