package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mpas/sequencer/cmd/sequencer/filter"
	"github.com/mpas/sequencer/cmd/sequencer/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mixedStore() *fakeStore {
	return &fakeStore{orders: []*models.Order{
		order(1, "A", 0, "Open"),
		order(2, "B", 2, "Ready"),
		order(3, "A", 0, "Ready"),
		order(4, "C", 0, "Open"),
	}}
}

func TestOrderService_List(t *testing.T) {
	h := newHarness(t, mixedStore())
	ctx := context.Background()

	rows, err := h.orders.List(ctx, query(models.ModeSequencing))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, rowIDs(rows))

	rows, err = h.orders.List(ctx, query(models.ModeResequencing))
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, rowIDs(rows))

	rows, err = h.orders.List(ctx, query(models.ModeAll))
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	q := query(models.ModeSequencing)
	q.Filter = `order.MaterialCode == "C"`
	rows, err = h.orders.List(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, rowIDs(rows))
}

func TestOrderService_List_Errors(t *testing.T) {
	store := mixedStore()
	h := newHarness(t, store)
	ctx := context.Background()

	q := query(models.ModeSequencing)
	q.Plant = ""
	_, err := h.orders.List(ctx, q)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	q = query(models.ModeSequencing)
	q.Filter = "order.Sflag =="
	_, err = h.orders.List(ctx, q)
	assert.ErrorIs(t, err, filter.ErrInvalidExpression)
	assert.Equal(t, 0, store.listCalls, "a bad filter never reaches storage")

	store.listErr = errors.New("connection reset")
	_, err = h.orders.List(ctx, query(models.ModeSequencing))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}
