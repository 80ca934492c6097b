package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edupoint-id/portal-api/internal/service"
	appErrors "github.com/edupoint-id/portal-api/pkg/errors"
	"github.com/edupoint-id/portal-api/pkg/response"
)

// CalendarHandler serves visibility-filtered calendar items.
type CalendarHandler struct {
	service *service.CalendarService
}

// NewCalendarHandler constructs handler.
func NewCalendarHandler(svc *service.CalendarService) *CalendarHandler {
	return &CalendarHandler{service: svc}
}

// List godoc
// @Summary Visible events and announcements in a date range
// @Tags Calendar
// @Produce json
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /calendar [get]
func (h *CalendarHandler) List(c *gin.Context) {
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
	if to.Before(from) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date range end precedes start"))
		return
	}

	items, err := h.service.VisibleItems(c.Request.Context(), claims.UserID, claims.Role, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
