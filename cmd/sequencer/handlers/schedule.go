package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mpas/sequencer/cmd/sequencer/container"
	"github.com/mpas/sequencer/cmd/sequencer/service"
	"github.com/mpas/sequencer/common/bootstrap"
)

// ScheduleHandler runs the calculator and grouper over posted lists
type ScheduleHandler struct {
	components *bootstrap.Components
	schedule   *service.ScheduleService
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(c *container.Container) *ScheduleHandler {
	return &ScheduleHandler{
		components: c.Components,
		schedule:   c.ScheduleService,
	}
}

// Preview stamps and groups a list without storing anything
// POST /api/schedule/preview
func (h *ScheduleHandler) Preview(c echo.Context) error {
	var req service.PreviewRequest
	if err := decodeOptionalJSON(c, &req); err != nil {
		return respondError(c, h.components.Logger, "failed to preview schedule", err)
	}

	result, err := h.schedule.Preview(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, h.components.Logger, "failed to preview schedule", err)
	}

	return c.JSON(http.StatusOK, result)
}
