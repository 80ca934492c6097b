package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edupoint-id/portal-api/internal/models"
	"github.com/edupoint-id/portal-api/internal/service"
	appErrors "github.com/edupoint-id/portal-api/pkg/errors"
	"github.com/edupoint-id/portal-api/pkg/response"
)

// LessonHandler manages recurring lesson templates.
type LessonHandler struct {
	service *service.LessonService
}

// NewLessonHandler constructs handler.
func NewLessonHandler(svc *service.LessonService) *LessonHandler {
	return &LessonHandler{service: svc}
}

// List godoc
// @Summary List recurring lesson templates
// @Tags Lessons
// @Produce json
// @Param classId query string false "Filter by class"
// @Param teacherId query string false "Filter by teacher"
// @Param subjectId query string false "Filter by subject"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons [get]
func (h *LessonHandler) List(c *gin.Context) {
	var filter models.LessonFilter
	filter.ClassID = c.Query("classId")
	filter.TeacherID = c.Query("teacherId")
	filter.SubjectID = c.Query("subjectId")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	lessons, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lessons, pagination)
}

// Reschedule godoc
// @Summary Move a recurring lesson to a new weekly slot
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Recurring lesson ID"
// @Param payload body service.RescheduleLessonRequest true "New slot"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/recurring/{id}/reschedule [put]
func (h *LessonHandler) Reschedule(c *gin.Context) {
	var req service.RescheduleLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	lesson, err := h.service.Reschedule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}
