package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mpas/sequencer/cmd/sequencer/container"
	"github.com/mpas/sequencer/cmd/sequencer/models"
	"github.com/mpas/sequencer/cmd/sequencer/scheduling"
	"github.com/mpas/sequencer/cmd/sequencer/service"
	"github.com/mpas/sequencer/common/bootstrap"
)

// OrderHandler serves the order list, anchor lookup and direct commits
type OrderHandler struct {
	components *bootstrap.Components
	orders     *service.OrderService
	anchors    *service.AnchorService
	schedule   *service.ScheduleService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(c *container.Container) *OrderHandler {
	return &OrderHandler{
		components: c.Components,
		orders:     c.OrderService,
		anchors:    c.AnchorService,
		schedule:   c.ScheduleService,
	}
}

// TestConnection checks database connectivity
// GET /api/test
func (h *OrderHandler) TestConnection(c echo.Context) error {
	version, err := h.orders.ServerVersion(c.Request().Context())
	if err != nil {
		h.components.Logger.Error("database connection test failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "database connection failed",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "database connection successful",
		"version": version,
	})
}

// LastScheduled returns the plant's latest scheduled time, or null
// GET /api/last-scheduled?plant=1000
func (h *OrderHandler) LastScheduled(c echo.Context) error {
	plant := c.QueryParam("plant")
	if plant == "" {
		return badRequestError(c, "plant is required")
	}

	anchor := h.anchors.Lookup(c.Request().Context(), plant)
	if anchor.Kind() == scheduling.AnchorLookupFailed {
		err := fmt.Errorf("%w: %v", scheduling.ErrAnchorLookupFailed, anchor.Err())
		return respondError(c, h.components.Logger, "failed to look up last scheduled time", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"lastScheduledTime": anchor.Ptr(),
	})
}

// ListOrders returns candidate orders filtered by mode
// GET /api/orders?plant=1000&line=L1&from=...&to=...&material=ALL&mode=Sequence
func (h *OrderHandler) ListOrders(c echo.Context) error {
	q, err := orderQueryFromRequest(c)
	if err != nil {
		return respondError(c, h.components.Logger, "failed to list orders", err)
	}

	rows, err := h.orders.List(c.Request().Context(), q)
	if err != nil {
		return respondError(c, h.components.Logger, "failed to list orders", err)
	}

	return c.JSON(http.StatusOK, rows)
}

// commitRowRequest is one row of a direct commit body
type commitRowRequest struct {
	RowID         int64  `json:"RowID"`
	ScheduledTime string `json:"ScheduledTime"`
	PlantCode     string `json:"PlantCode"`
	Username      string `json:"username"`
	ClientID      string `json:"clientid"`
}

// Sequence commits newly sequenced rows
// POST /api/sequence
func (h *OrderHandler) Sequence(c echo.Context) error {
	return h.commit(c, models.ModeSequencing)
}

// Resequence commits re-timed rows
// POST /api/resequence
func (h *OrderHandler) Resequence(c echo.Context) error {
	return h.commit(c, models.ModeResequencing)
}

func (h *OrderHandler) commit(c echo.Context, mode models.Mode) error {
	var body []commitRowRequest
	if err := decodeOptionalJSON(c, &body); err != nil {
		return respondError(c, h.components.Logger, "failed to commit", err)
	}

	batchID, err := batchIDFromRequest(c, "")
	if err != nil {
		return respondError(c, h.components.Logger, "failed to commit", err)
	}

	// Identity and plant travel on the first row
	var identity models.Identity
	plant := c.QueryParam("plant")
	if len(body) > 0 {
		identity = models.Identity{Username: body[0].Username, ClientID: body[0].ClientID}
		if body[0].PlantCode != "" {
			plant = body[0].PlantCode
		}
	}

	rows := make([]models.CommitRow, len(body))
	for i, r := range body {
		at, err := scheduling.ParseTimestamp(r.ScheduledTime, RequestLocation)
		if err != nil {
			return respondError(c, h.components.Logger, "failed to commit", fmt.Errorf("row %d: %w", r.RowID, err))
		}
		rows[i] = models.CommitRow{RowID: r.RowID, ScheduledTime: at, PlantCode: r.PlantCode}
	}

	result, err := h.schedule.Commit(c.Request().Context(), &service.CommitRequest{
		BatchID:  batchID,
		Mode:     mode,
		Plant:    plant,
		Identity: mergeIdentity(c, identity),
		Rows:     rows,
	})
	if err != nil {
		return respondError(c, h.components.Logger, "failed to commit", err)
	}

	return c.JSON(http.StatusOK, result)
}
