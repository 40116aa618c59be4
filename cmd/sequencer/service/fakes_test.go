package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mpas/sequencer/cmd/sequencer/filter"
	"github.com/mpas/sequencer/cmd/sequencer/models"
	"github.com/mpas/sequencer/cmd/sequencer/scheduling"
	"github.com/mpas/sequencer/common/cache"
	"github.com/mpas/sequencer/common/config"
	"github.com/mpas/sequencer/common/logger"
	"github.com/mpas/sequencer/common/metrics"
	"github.com/mpas/sequencer/common/queue"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu sync.Mutex

	orders    []*models.Order
	listErr   error
	listCalls int

	last       time.Time
	lastFound  bool
	lastErr    error
	lastCalls  int
	commitErr  error
	committed  []*models.CommitBatch
	version    string
	versionErr error
}

func (f *fakeStore) List(ctx context.Context, q models.OrderQuery) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.Order, len(f.orders))
	for i, o := range f.orders {
		out[i] = o.Clone()
	}
	return out, nil
}

func (f *fakeStore) LastScheduledTime(ctx context.Context, plant string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCalls++
	return f.last, f.lastFound, f.lastErr
}

func (f *fakeStore) CommitBatch(ctx context.Context, batch *models.CommitBatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = append(f.committed, batch)
	return nil
}

func (f *fakeStore) ServerVersion(ctx context.Context) (string, error) {
	return f.version, f.versionErr
}

func (f *fakeStore) lookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCalls
}

type harness struct {
	store    *fakeStore
	cache    *cache.MemoryCache
	queue    *queue.MemoryQueue
	metrics  *metrics.Recorder
	orders   *OrderService
	anchors  *AnchorService
	schedule *ScheduleService
	sessions *SessionService
}

var (
	t0   = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	from = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
)

func newHarness(t *testing.T, store *fakeStore) *harness {
	t.Helper()

	log := logger.NewNop()
	c := cache.NewMemoryCache(log)
	q := queue.NewMemoryQueue(log)
	t.Cleanup(func() {
		c.Close()
		q.Close()
	})

	ev, err := filter.NewEvaluator()
	require.NoError(t, err)

	lines, err := config.ParseLines([]byte("lines:\n  - plant: \"1000\"\n    line: L2\n    takt_seconds: 120\n"), 240)
	require.NoError(t, err)

	rec := metrics.NewRecorder()
	calc := scheduling.NewCalculator(scheduling.WithClock(func() time.Time {
		return time.Date(2024, 1, 1, 10, 0, 0, 500_000_000, time.UTC)
	}))

	h := &harness{store: store, cache: c, queue: q, metrics: rec}
	h.orders = NewOrderService(store, ev, log)
	h.anchors = NewAnchorService(store, c, 30*time.Second, rec, log)
	h.schedule = NewScheduleService(store, h.anchors, calc, lines, q, rec, log)
	h.sessions = NewSessionService(c, time.Hour, h.orders, h.schedule, rec, log)
	return h
}

func order(id int64, material string, sflag int, status string) *models.Order {
	return &models.Order{
		RowID:        id,
		PlantCode:    "1000",
		LineCode:     "L1",
		MaterialCode: material,
		MaterialDesc: "desc " + material,
		Sflag:        sflag,
		OrderStatus:  status,
	}
}

func scheduledOrder(id int64, material string, at time.Time) *models.Order {
	o := order(id, material, models.SflagScheduled, models.StatusReady)
	o.ScheduledTime = &at
	return o
}

func rowIDs(orders []*models.Order) []int64 {
	out := make([]int64, len(orders))
	for i, o := range orders {
		out[i] = o.RowID
	}
	return out
}

func times(orders []*models.Order) []time.Time {
	out := make([]time.Time, len(orders))
	for i, o := range orders {
		if o.ScheduledTime != nil {
			out[i] = *o.ScheduledTime
		}
	}
	return out
}

func query(mode models.Mode) models.OrderQuery {
	return models.OrderQuery{Plant: "1000", Line: "L1", From: from, To: to, Mode: mode}
}
