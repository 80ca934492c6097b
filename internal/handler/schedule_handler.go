package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edupoint-id/portal-api/internal/middleware"
	"github.com/edupoint-id/portal-api/internal/service"
	appErrors "github.com/edupoint-id/portal-api/pkg/errors"
	"github.com/edupoint-id/portal-api/pkg/response"
)

// ScheduleHandler serves resolved schedule views.
type ScheduleHandler struct {
	service *service.ScheduleService
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// Range godoc
// @Summary Resolved schedule for a date range
// @Tags Schedule
// @Produce json
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD)"
// @Param studentId query string false "Student whose attendance to join"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schedule [get]
func (h *ScheduleHandler) Range(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD"))
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD"))
		return
	}

	req := service.ScheduleRequest{From: from, To: to, StudentID: c.Query("studentId")}
	view, err := h.service.GetSchedule(c.Request.Context(), claims.UserID, claims.Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, view.FromCache)
	response.JSON(c, http.StatusOK, view, nil, middleware.ExtractMeta(c))
}

// Today godoc
// @Summary Resolved schedule for today
// @Tags Schedule
// @Produce json
// @Param date query string false "Override date (YYYY-MM-DD), defaults to today"
// @Param studentId query string false "Student whose attendance to join"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schedule/today [get]
func (h *ScheduleHandler) Today(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	today := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
			return
		}
		today = parsed
	}
	req := service.ScheduleRequest{From: today, To: today, StudentID: c.Query("studentId")}
	view, err := h.service.GetSchedule(c.Request.Context(), claims.UserID, claims.Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, view.FromCache)
	response.JSON(c, http.StatusOK, view, nil, middleware.ExtractMeta(c))
}
