package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/mpas/sequencer/cmd/sequencer/middleware"
	"github.com/mpas/sequencer/cmd/sequencer/models"
	"github.com/mpas/sequencer/cmd/sequencer/scheduling"
	"github.com/mpas/sequencer/cmd/sequencer/service"
)

// RequestLocation is the zone applied to timestamps sent without an offset
var RequestLocation = time.Local

// orderQueryParams is the query string (or body) shape of an order selection
type orderQueryParams struct {
	Plant    string `query:"plant" json:"plant"`
	Line     string `query:"line" json:"line"`
	From     string `query:"from" json:"from"`
	To       string `query:"to" json:"to"`
	Material string `query:"material" json:"material"`
	Mode     string `query:"mode" json:"mode"`
	Filter   string `query:"filter" json:"filter"`
}

func (p orderQueryParams) toQuery() (models.OrderQuery, error) {
	from, err := scheduling.ParseTimestamp(p.From, RequestLocation)
	if err != nil {
		return models.OrderQuery{}, fmt.Errorf("from: %w", err)
	}
	to, err := scheduling.ParseTimestamp(p.To, RequestLocation)
	if err != nil {
		return models.OrderQuery{}, fmt.Errorf("to: %w", err)
	}

	return models.OrderQuery{
		Plant:    p.Plant,
		Line:     p.Line,
		From:     from,
		To:       to,
		Material: p.Material,
		Mode:     models.ParseMode(p.Mode),
		Filter:   p.Filter,
	}, nil
}

func orderQueryFromRequest(c echo.Context) (models.OrderQuery, error) {
	return orderQueryParams{
		Plant:    c.QueryParam("plant"),
		Line:     c.QueryParam("line"),
		From:     c.QueryParam("from"),
		To:       c.QueryParam("to"),
		Material: c.QueryParam("material"),
		Mode:     c.QueryParam("mode"),
		Filter:   c.QueryParam("filter"),
	}.toQuery()
}

// mergeIdentity fills empty fields of primary from the request context
func mergeIdentity(c echo.Context, primary models.Identity) models.Identity {
	fallback := middleware.GetIdentity(c)
	if primary.Username == "" {
		primary.Username = fallback.Username
	}
	if primary.ClientID == "" {
		primary.ClientID = fallback.ClientID
	}
	return primary
}

// batchIDFromRequest reads an optional client batch ID for idempotent retries
func batchIDFromRequest(c echo.Context, body string) (uuid.UUID, error) {
	raw := body
	if raw == "" {
		raw = c.QueryParam("batch_id")
	}
	if raw == "" {
		raw = c.Request().Header.Get("X-Batch-ID")
	}
	if raw == "" {
		return uuid.Nil, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: batch_id: %v", service.ErrInvalidRequest, err)
	}
	return id, nil
}

// decodeOptionalJSON decodes the body into v; an empty body leaves v untouched
func decodeOptionalJSON(c echo.Context, v interface{}) error {
	err := json.NewDecoder(c.Request().Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: invalid request body: %v", service.ErrInvalidRequest, err)
	}
	return nil
}

func intParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", service.ErrInvalidRequest, name)
	}
	return n, nil
}
