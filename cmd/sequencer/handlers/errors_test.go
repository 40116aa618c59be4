package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/mpas/sequencer/cmd/sequencer/filter"
	"github.com/mpas/sequencer/cmd/sequencer/repository"
	"github.com/mpas/sequencer/cmd/sequencer/scheduling"
	"github.com/mpas/sequencer/cmd/sequencer/service"
	"github.com/mpas/sequencer/common/logger"
	"github.com/mpas/sequencer/common/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("takt: %w", scheduling.ErrInvalidInterval), http.StatusBadRequest},
		{fmt.Errorf("from: %w", scheduling.ErrInvalidTimestamp), http.StatusBadRequest},
		{scheduling.ErrGroupIndex, http.StatusBadRequest},
		{filter.ErrInvalidExpression, http.StatusBadRequest},
		{validation.ErrInvalidPatch, http.StatusBadRequest},
		{service.ErrInvalidRequest, http.StatusBadRequest},
		{service.ErrInvalidMode, http.StatusBadRequest},
		{service.ErrUnknownRow, http.StatusBadRequest},
		{fmt.Errorf("%w: abc", service.ErrSessionNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: RowID 3", repository.ErrOrderNotFound), http.StatusConflict},
		{scheduling.ErrAnchorLookupFailed, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestRespondError_HidesServerErrors(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, respondError(c, logger.NewNop(), "failed to list orders", errors.New("pq: password authentication failed")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"failed to list orders"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, respondError(c, logger.NewNop(), "failed to list orders", service.ErrInvalidMode))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), service.ErrInvalidMode.Error())
}
