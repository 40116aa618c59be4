package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mpas/sequencer/cmd/sequencer/models"
	"github.com/mpas/sequencer/cmd/sequencer/repository"
	"github.com/mpas/sequencer/cmd/sequencer/scheduling"
	"github.com/mpas/sequencer/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaktFor(t *testing.T) {
	h := newHarness(t, &fakeStore{})

	takt, err := h.schedule.TaktFor("1000", "L1", 0)
	require.NoError(t, err)
	assert.Equal(t, 240, takt, "default")

	takt, err = h.schedule.TaktFor("1000", "L2", 0)
	require.NoError(t, err)
	assert.Equal(t, 120, takt, "lines table")

	takt, err = h.schedule.TaktFor("1000", "L2", 90)
	require.NoError(t, err)
	assert.Equal(t, 90, takt, "override")

	_, err = h.schedule.TaktFor("1000", "L1", -5)
	assert.ErrorIs(t, err, scheduling.ErrInvalidInterval)
}

func TestSchedule_FromAnchor(t *testing.T) {
	h := newHarness(t, &fakeStore{last: t0, lastFound: true})
	orders := []*models.Order{order(1, "A", 0, "Open"), order(2, "B", 0, "Open")}

	anchor, err := h.schedule.Schedule(context.Background(), "1000", 240, orders)
	require.NoError(t, err)
	assert.Equal(t, scheduling.AnchorFound, anchor.Kind())
	assert.Equal(t, []time.Time{t0.Add(4 * time.Minute), t0.Add(8 * time.Minute)}, times(orders))
}

func TestSchedule_NoAnchorUsesClock(t *testing.T) {
	h := newHarness(t, &fakeStore{})
	orders := []*models.Order{order(1, "A", 0, "Open"), order(2, "B", 0, "Open"), order(3, "C", 0, "Open")}

	_, err := h.schedule.Schedule(context.Background(), "1000", 240, orders)
	require.NoError(t, err)

	ten := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, []time.Time{ten, ten.Add(4 * time.Minute), ten.Add(8 * time.Minute)}, times(orders))
}

func TestSchedule_LookupFailure(t *testing.T) {
	h := newHarness(t, &fakeStore{lastErr: errors.New("db down")})
	orders := []*models.Order{order(1, "A", 0, "Open")}

	_, err := h.schedule.Schedule(context.Background(), "1000", 240, orders)
	assert.ErrorIs(t, err, scheduling.ErrAnchorLookupFailed)
	assert.Nil(t, orders[0].ScheduledTime)
}

func TestSchedule_EmptySkipsLookup(t *testing.T) {
	store := &fakeStore{lastErr: errors.New("db down")}
	h := newHarness(t, store)

	_, err := h.schedule.Schedule(context.Background(), "1000", 240, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, store.lookups())
}

func TestPreview(t *testing.T) {
	h := newHarness(t, &fakeStore{})
	anchor := t0

	res, err := h.schedule.Preview(context.Background(), &PreviewRequest{
		Plant:  "1000",
		Line:   "L2",
		Anchor: &anchor,
		Orders: []*models.Order{
			order(1, "A", 0, "Open"),
			order(2, "A", 0, "Open"),
			order(3, "B", 0, "Open"),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 120, res.TaktSeconds)
	assert.Equal(t, t0, *res.Anchor)
	assert.Equal(t, []time.Time{t0.Add(2 * time.Minute), t0.Add(4 * time.Minute), t0.Add(6 * time.Minute)}, times(res.Orders))
	require.Len(t, res.Groups, 2)
	assert.Equal(t, 2, res.Groups[0].Count)
	assert.Equal(t, 0, h.store.lookups(), "an explicit anchor skips the lookup")
}

func TestPreview_Validation(t *testing.T) {
	h := newHarness(t, &fakeStore{lastErr: errors.New("db down")})
	ctx := context.Background()

	_, err := h.schedule.Preview(ctx, &PreviewRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = h.schedule.Preview(ctx, &PreviewRequest{Plant: "1000", TaktSeconds: -1})
	assert.ErrorIs(t, err, scheduling.ErrInvalidInterval)

	_, err = h.schedule.Preview(ctx, &PreviewRequest{Plant: "1000", Orders: []*models.Order{order(1, "A", 0, "Open")}})
	assert.ErrorIs(t, err, scheduling.ErrAnchorLookupFailed)

	res, err := h.schedule.Preview(ctx, &PreviewRequest{Plant: "1000"})
	require.NoError(t, err)
	assert.Empty(t, res.Orders)
	assert.Empty(t, res.Groups)
	assert.Nil(t, res.Anchor)
}

func TestCommit(t *testing.T) {
	store := &fakeStore{last: t0, lastFound: true}
	h := newHarness(t, store)
	ctx := context.Background()

	h.anchors.Lookup(ctx, "1000")
	require.Equal(t, 1, store.lookups())

	res, err := h.schedule.Commit(ctx, &CommitRequest{
		Mode:  models.ModeSequencing,
		Plant: "1000",
		Rows: []models.CommitRow{
			{RowID: 1, ScheduledTime: t0.Add(500 * time.Millisecond)},
			{RowID: 2, ScheduledTime: t0.Add(4*time.Minute + 999*time.Millisecond)},
		},
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, res.BatchID)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, "SYSTEM", res.Username)
	assert.Equal(t, "UNKNOWN", res.ClientID)
	assert.False(t, res.Duplicate)

	require.Len(t, store.committed, 1)
	batch := store.committed[0]
	assert.Equal(t, models.ModeSequencing, batch.Mode)
	assert.Equal(t, t0, batch.Rows[0].ScheduledTime)
	assert.Equal(t, t0.Add(4*time.Minute), batch.Rows[1].ScheduledTime)

	h.anchors.Lookup(ctx, "1000")
	assert.Equal(t, 2, store.lookups(), "commit invalidates the cached anchor")
}

func TestCommit_EmptyIsNoop(t *testing.T) {
	store := &fakeStore{}
	h := newHarness(t, store)

	res, err := h.schedule.Commit(context.Background(), &CommitRequest{
		Mode:     models.ModeResequencing,
		Identity: models.Identity{Username: "alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Rows)
	assert.Equal(t, "alice", res.Username)
	assert.Empty(t, store.committed)
}

func TestCommit_Errors(t *testing.T) {
	ctx := context.Background()
	rows := []models.CommitRow{{RowID: 1, ScheduledTime: t0}}

	h := newHarness(t, &fakeStore{})
	_, err := h.schedule.Commit(ctx, &CommitRequest{Mode: models.ModeAll, Rows: rows})
	assert.ErrorIs(t, err, ErrInvalidMode)

	h = newHarness(t, &fakeStore{commitErr: fmt.Errorf("%w: RowID 9", repository.ErrOrderNotFound)})
	_, err = h.schedule.Commit(ctx, &CommitRequest{Mode: models.ModeSequencing, Plant: "1000", Rows: rows})
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)

	h = newHarness(t, &fakeStore{commitErr: errors.New("deadlock detected")})
	_, err = h.schedule.Commit(ctx, &CommitRequest{Mode: models.ModeSequencing, Plant: "1000", Rows: rows})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock detected")
}

func TestCommit_DuplicateBatch(t *testing.T) {
	h := newHarness(t, &fakeStore{commitErr: repository.ErrDuplicateBatch})
	id := uuid.New()

	res, err := h.schedule.Commit(context.Background(), &CommitRequest{
		BatchID: id,
		Mode:    models.ModeResequencing,
		Plant:   "1000",
		Rows:    []models.CommitRow{{RowID: 1, ScheduledTime: t0}},
	})
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, id, res.BatchID)
}

func TestCommit_RowsWithoutPlantRejected(t *testing.T) {
	store := &fakeStore{last: t0, lastFound: true}
	h := newHarness(t, store)

	_, err := h.schedule.Commit(context.Background(), &CommitRequest{
		Mode: models.ModeSequencing,
		Rows: []models.CommitRow{
			{RowID: 1, ScheduledTime: t0.Add(time.Hour), PlantCode: "1000"},
			{RowID: 2, ScheduledTime: t0.Add(time.Hour + 4*time.Minute)},
		},
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, store.committed)
}

func TestCommit_InvalidatesEveryPlantInBatch(t *testing.T) {
	store := &fakeStore{last: t0, lastFound: true}
	h := newHarness(t, store)
	ctx := context.Background()

	h.anchors.Lookup(ctx, "1000")
	h.anchors.Lookup(ctx, "2000")
	require.Equal(t, 2, store.lookups())

	_, err := h.schedule.Commit(ctx, &CommitRequest{
		Mode: models.ModeSequencing,
		Rows: []models.CommitRow{
			{RowID: 1, ScheduledTime: t0.Add(time.Hour), PlantCode: "1000"},
			{RowID: 2, ScheduledTime: t0.Add(time.Hour), PlantCode: "2000"},
		},
	})
	require.NoError(t, err)

	require.Len(t, store.committed, 1)
	assert.Equal(t, "1000", store.committed[0].Plant, "first row plant stands in for the batch")
	assert.Equal(t, "2000", store.committed[0].Rows[1].PlantCode)

	store.mu.Lock()
	store.last = t0.Add(time.Hour)
	store.mu.Unlock()

	orders := []*models.Order{order(3, "A", 0, "Open")}
	_, err = h.schedule.Schedule(ctx, "1000", 240, orders)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour+4*time.Minute), *orders[0].ScheduledTime, "next slot follows the committed row")

	h.anchors.Lookup(ctx, "2000")
	assert.Equal(t, 4, store.lookups())
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []string
	channels []string
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, channel)
	p.messages = append(p.messages, string(payload))
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func TestCommit_RelaysEvent(t *testing.T) {
	h := newHarness(t, &fakeStore{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub := &fakePublisher{}
	require.NoError(t, RelayCommits(ctx, h.queue, pub, logger.NewNop()))

	_, err := h.schedule.Commit(ctx, &CommitRequest{
		Mode:     models.ModeSequencing,
		Plant:    "1000",
		Identity: models.Identity{Username: "alice"},
		Rows:     []models.CommitRow{{RowID: 1, ScheduledTime: t0}},
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return pub.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, ChannelCommitted, pub.channels[0])

	var ev CommitEvent
	require.NoError(t, json.Unmarshal([]byte(pub.messages[0]), &ev))
	assert.Equal(t, "1000", ev.Plant)
	assert.Equal(t, "alice", ev.Username)
	assert.Equal(t, 1, ev.Rows)
}
