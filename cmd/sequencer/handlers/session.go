package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mpas/sequencer/cmd/sequencer/container"
	"github.com/mpas/sequencer/cmd/sequencer/models"
	"github.com/mpas/sequencer/cmd/sequencer/service"
	"github.com/mpas/sequencer/common/bootstrap"
	"github.com/mpas/sequencer/common/validation"
)

// SessionHandler exposes planner working sets
type SessionHandler struct {
	components *bootstrap.Components
	sessions   *service.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(c *container.Container) *SessionHandler {
	return &SessionHandler{
		components: c.Components,
		sessions:   c.SessionService,
	}
}

type createSessionBody struct {
	orderQueryParams
	TaktSeconds int    `json:"takt_seconds"`
	Username    string `json:"username"`
	ClientID    string `json:"clientid"`
}

type rowIDsBody struct {
	RowIDs []int64 `json:"row_ids"`
}

type moveGroupBody struct {
	From *int `json:"from"`
	To   *int `json:"to"`
}

type recalcBody struct {
	TaktSeconds int `json:"takt_seconds"`
}

type commitSessionBody struct {
	BatchID  string `json:"batch_id"`
	Username string `json:"username"`
	ClientID string `json:"clientid"`
}

// CreateSession loads orders into a new working set
// POST /api/sessions
func (h *SessionHandler) CreateSession(c echo.Context) error {
	var body createSessionBody
	if err := decodeOptionalJSON(c, &body); err != nil {
		return respondError(c, h.components.Logger, "failed to create session", err)
	}

	q, err := body.toQuery()
	if err != nil {
		return respondError(c, h.components.Logger, "failed to create session", err)
	}

	ws, err := h.sessions.Create(c.Request().Context(), &service.CreateSessionRequest{
		Query:       q,
		TaktSeconds: body.TaktSeconds,
		Identity:    mergeIdentity(c, models.Identity{Username: body.Username, ClientID: body.ClientID}),
	})
	if err != nil {
		return respondError(c, h.components.Logger, "failed to create session", err)
	}

	return c.JSON(http.StatusCreated, ws)
}

// GetSession returns a working set
// GET /api/sessions/:id
func (h *SessionHandler) GetSession(c echo.Context) error {
	ws, err := h.sessions.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.components.Logger, "failed to load session", err)
	}
	return c.JSON(http.StatusOK, ws)
}

// DeleteSession discards a working set
// DELETE /api/sessions/:id
func (h *SessionHandler) DeleteSession(c echo.Context) error {
	if err := h.sessions.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return respondError(c, h.components.Logger, "failed to delete session", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Pick moves unscheduled orders to the end of the scheduled list
// POST /api/sessions/:id/pick
func (h *SessionHandler) Pick(c echo.Context) error {
	var body rowIDsBody
	if err := decodeOptionalJSON(c, &body); err != nil {
		return respondError(c, h.components.Logger, "failed to pick orders", err)
	}

	ws, err := h.sessions.Pick(c.Request().Context(), c.Param("id"), body.RowIDs)
	if err != nil {
		return respondError(c, h.components.Logger, "failed to pick orders", err)
	}
	return c.JSON(http.StatusOK, ws)
}

// Unpick returns scheduled orders to the unscheduled list
// POST /api/sessions/:id/unpick
func (h *SessionHandler) Unpick(c echo.Context) error {
	var body rowIDsBody
	if err := decodeOptionalJSON(c, &body); err != nil {
		return respondError(c, h.components.Logger, "failed to unpick orders", err)
	}

	ws, err := h.sessions.Unpick(c.Request().Context(), c.Param("id"), body.RowIDs)
	if err != nil {
		return respondError(c, h.components.Logger, "failed to unpick orders", err)
	}
	return c.JSON(http.StatusOK, ws)
}

// PatchScheduled reorders the scheduled list with JSON Patch move ops
// PATCH /api/sessions/:id/scheduled
func (h *SessionHandler) PatchScheduled(c echo.Context) error {
	patch, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return badRequestError(c, "failed to read request body")
	}
	if len(patch) == 0 {
		return respondError(c, h.components.Logger, "failed to reorder", fmt.Errorf("%w: empty patch", validation.ErrInvalidPatch))
	}

	ws, err := h.sessions.PatchScheduled(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return respondError(c, h.components.Logger, "failed to reorder", err)
	}
	return c.JSON(http.StatusOK, ws)
}

// MoveGroup moves a whole material group
// POST /api/sessions/:id/groups/move
func (h *SessionHandler) MoveGroup(c echo.Context) error {
	var body moveGroupBody
	if err := decodeOptionalJSON(c, &body); err != nil {
		return respondError(c, h.components.Logger, "failed to move group", err)
	}
	if body.From == nil || body.To == nil {
		return badRequestError(c, "from and to are required")
	}

	ws, err := h.sessions.MoveGroup(c.Request().Context(), c.Param("id"), *body.From, *body.To)
	if err != nil {
		return respondError(c, h.components.Logger, "failed to move group", err)
	}
	return c.JSON(http.StatusOK, ws)
}

// Recalc reschedules the scheduled list, optionally with a new takt
// POST /api/sessions/:id/recalc
func (h *SessionHandler) Recalc(c echo.Context) error {
	var body recalcBody
	if err := decodeOptionalJSON(c, &body); err != nil {
		return respondError(c, h.components.Logger, "failed to recalculate", err)
	}
	if body.TaktSeconds == 0 {
		takt, err := intParam(c, "takt")
		if err != nil {
			return respondError(c, h.components.Logger, "failed to recalculate", err)
		}
		body.TaktSeconds = takt
	}

	ws, err := h.sessions.Recalc(c.Request().Context(), c.Param("id"), body.TaktSeconds)
	if err != nil {
		return respondError(c, h.components.Logger, "failed to recalculate", err)
	}
	return c.JSON(http.StatusOK, ws)
}

// Groups returns the material groups of the scheduled list
// GET /api/sessions/:id/groups
func (h *SessionHandler) Groups(c echo.Context) error {
	groups, err := h.sessions.Groups(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.components.Logger, "failed to load groups", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": c.Param("id"),
		"groups":     groups,
		"count":      len(groups),
	})
}

// Commit submits the scheduled list and discards the session
// POST /api/sessions/:id/commit
func (h *SessionHandler) Commit(c echo.Context) error {
	var body commitSessionBody
	if err := decodeOptionalJSON(c, &body); err != nil {
		return respondError(c, h.components.Logger, "failed to commit session", err)
	}

	batchID, err := batchIDFromRequest(c, body.BatchID)
	if err != nil {
		return respondError(c, h.components.Logger, "failed to commit session", err)
	}

	identity := mergeIdentity(c, models.Identity{Username: body.Username, ClientID: body.ClientID})
	result, err := h.sessions.Commit(c.Request().Context(), c.Param("id"), identity, batchID)
	if err != nil {
		return respondError(c, h.components.Logger, "failed to commit session", err)
	}

	return c.JSON(http.StatusOK, result)
}
