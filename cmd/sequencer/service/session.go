package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
	"github.com/mpas/sequencer/cmd/sequencer/models"
	"github.com/mpas/sequencer/cmd/sequencer/scheduling"
	"github.com/mpas/sequencer/common/cache"
	"github.com/mpas/sequencer/common/logger"
	"github.com/mpas/sequencer/common/metrics"
	"github.com/mpas/sequencer/common/validation"
)

const sessionKeyPrefix = "session:"

// SessionService owns planner working sets. Each session is stored in the
// cache under its ID and mutated under a per-session lock.
type SessionService struct {
	cache     cache.Cache
	ttl       time.Duration
	orders    *OrderService
	schedule  *ScheduleService
	validator *validation.PatchValidator
	locks     *keyedMutex
	metrics   *metrics.Recorder
	log       *logger.Logger
	now       func() time.Time
}

// NewSessionService creates a new session service
func NewSessionService(
	c cache.Cache,
	ttl time.Duration,
	orders *OrderService,
	schedule *ScheduleService,
	m *metrics.Recorder,
	log *logger.Logger,
) *SessionService {
	return &SessionService{
		cache:     c,
		ttl:       ttl,
		orders:    orders,
		schedule:  schedule,
		validator: validation.NewPatchValidator(),
		locks:     newKeyedMutex(),
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// CreateSessionRequest opens a working set
type CreateSessionRequest struct {
	Query       models.OrderQuery `json:"query"`
	TaktSeconds int               `json:"takt_seconds"`
	Identity    models.Identity   `json:"identity"`
}

// Create loads orders into a new working set. Sequencing sessions start with
// every order unscheduled; resequencing sessions start with the scheduled list
// in scheduled-time order, grouped by material.
func (s *SessionService) Create(ctx context.Context, req *CreateSessionRequest) (*models.WorkingSet, error) {
	if err := requireCommitMode(req.Query.Mode); err != nil {
		return nil, err
	}

	takt, err := s.schedule.TaktFor(req.Query.Plant, req.Query.Line, req.TaktSeconds)
	if err != nil {
		return nil, err
	}

	rows, err := s.orders.List(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ws := &models.WorkingSet{
		SessionID:   uuid.NewString(),
		Query:       req.Query,
		TaktSeconds: takt,
		Identity:    req.Identity,
		Unscheduled: []*models.Order{},
		Scheduled:   []*models.Order{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := ws.Query.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	switch req.Query.Mode {
	case models.ModeSequencing:
		ws.Unscheduled = rows
	case models.ModeResequencing:
		ws.Scheduled = sortByScheduledTime(rows)
	}
	s.regroup(ws)

	if err := s.save(ctx, ws); err != nil {
		return nil, err
	}

	s.log.WithSession(ws.SessionID).WithPlant(ws.Query.Plant).Info("session created",
		"mode", ws.Mode().String(),
		"unscheduled", len(ws.Unscheduled),
		"scheduled", len(ws.Scheduled),
		"takt_seconds", takt,
	)

	return ws, nil
}

// Get returns a working set
func (s *SessionService) Get(ctx context.Context, id string) (*models.WorkingSet, error) {
	return s.load(ctx, id)
}

// Delete discards a working set
func (s *SessionService) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, sessionKeyPrefix+id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.log.WithSession(id).Info("session discarded")
	return nil
}

// Pick moves orders from the unscheduled list to the end of the scheduled
// list in the given order, then reschedules
func (s *SessionService) Pick(ctx context.Context, id string, rowIDs []int64) (*models.WorkingSet, error) {
	return s.update(ctx, id, func(ws *models.WorkingSet) error {
		picked, rest, err := take(ws.Unscheduled, rowIDs)
		if err != nil {
			return err
		}
		ws.Unscheduled = rest
		ws.Scheduled = append(ws.Scheduled, picked...)
		return s.recalc(ctx, ws)
	})
}

// Unpick returns orders to the unscheduled list and reschedules the rest
func (s *SessionService) Unpick(ctx context.Context, id string, rowIDs []int64) (*models.WorkingSet, error) {
	return s.update(ctx, id, func(ws *models.WorkingSet) error {
		removed, rest, err := take(ws.Scheduled, rowIDs)
		if err != nil {
			return err
		}
		for _, o := range removed {
			o.ScheduledTime = nil
		}
		ws.Scheduled = rest
		ws.Unscheduled = append(ws.Unscheduled, removed...)
		return s.recalc(ctx, ws)
	})
}

// PatchScheduled reorders the scheduled list with a JSON Patch over its
// RowID array, e.g. [{"op":"move","from":"/3","path":"/0"}]
func (s *SessionService) PatchScheduled(ctx context.Context, id string, patchJSON []byte) (*models.WorkingSet, error) {
	var ops []map[string]interface{}
	if err := json.Unmarshal(patchJSON, &ops); err != nil {
		return nil, fmt.Errorf("%w: %v", validation.ErrInvalidPatch, err)
	}

	return s.update(ctx, id, func(ws *models.WorkingSet) error {
		if err := s.validator.ValidateOperations(ops, len(ws.Scheduled)); err != nil {
			return err
		}

		reordered, err := applyReorder(ws.Scheduled, patchJSON)
		if err != nil {
			return err
		}
		ws.Scheduled = reordered
		return s.recalc(ctx, ws)
	})
}

// MoveGroup moves a whole material run and reschedules
func (s *SessionService) MoveGroup(ctx context.Context, id string, from, to int) (*models.WorkingSet, error) {
	return s.update(ctx, id, func(ws *models.WorkingSet) error {
		moved, err := scheduling.MoveGroup(ws.Scheduled, from, to)
		if err != nil {
			return err
		}
		ws.Scheduled = moved
		return s.recalc(ctx, ws)
	})
}

// Recalc reschedules the scheduled list, optionally with a new takt
func (s *SessionService) Recalc(ctx context.Context, id string, taktOverride int) (*models.WorkingSet, error) {
	return s.update(ctx, id, func(ws *models.WorkingSet) error {
		if taktOverride != 0 {
			takt, err := s.schedule.TaktFor(ws.Query.Plant, ws.Query.Line, taktOverride)
			if err != nil {
				return err
			}
			ws.TaktSeconds = takt
		}
		return s.recalc(ctx, ws)
	})
}

// Groups returns the material groups of the scheduled list
func (s *SessionService) Groups(ctx context.Context, id string) ([]*models.MaterialGroup, error) {
	ws, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordGroups(len(ws.Groups))
	return ws.Groups, nil
}

// Commit submits the scheduled list and discards the session on success.
// A non-empty identity overrides the one the session was opened with.
func (s *SessionService) Commit(ctx context.Context, id string, identity models.Identity, batchID uuid.UUID) (*models.CommitResult, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	ws, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if identity.Username == "" {
		identity.Username = ws.Identity.Username
	}
	if identity.ClientID == "" {
		identity.ClientID = ws.Identity.ClientID
	}

	rows := make([]models.CommitRow, 0, len(ws.Scheduled))
	for _, o := range ws.Scheduled {
		if o.ScheduledTime == nil {
			return nil, fmt.Errorf("%w: order %d has no scheduled time", ErrInvalidRequest, o.RowID)
		}
		rows = append(rows, models.CommitRow{RowID: o.RowID, ScheduledTime: *o.ScheduledTime, PlantCode: o.PlantCode})
	}

	result, err := s.schedule.Commit(ctx, &CommitRequest{
		BatchID:  batchID,
		Mode:     ws.Mode(),
		Plant:    ws.Query.Plant,
		Identity: identity,
		Rows:     rows,
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Delete(ctx, sessionKeyPrefix+id); err != nil {
		s.log.WithSession(id).Warn("failed to discard committed session", "error", err)
	}

	return result, nil
}

func (s *SessionService) update(ctx context.Context, id string, fn func(ws *models.WorkingSet) error) (*models.WorkingSet, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	ws, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := fn(ws); err != nil {
		return nil, err
	}

	ws.UpdatedAt = s.now()
	s.regroup(ws)

	if err := s.save(ctx, ws); err != nil {
		return nil, err
	}
	return ws, nil
}

func (s *SessionService) recalc(ctx context.Context, ws *models.WorkingSet) error {
	_, err := s.schedule.Schedule(ctx, ws.Query.Plant, ws.TaktSeconds, ws.Scheduled)
	return err
}

func (s *SessionService) regroup(ws *models.WorkingSet) {
	ws.Groups = scheduling.BuildGroups(ws.Scheduled)
}

func (s *SessionService) load(ctx context.Context, id string) (*models.WorkingSet, error) {
	raw, ok, err := s.cache.Get(ctx, sessionKeyPrefix+id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	ws := &models.WorkingSet{}
	if err := json.Unmarshal(raw, ws); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	// Groups reference Scheduled entries, so they are rebuilt instead of stored
	s.regroup(ws)
	return ws, nil
}

func (s *SessionService) save(ctx context.Context, ws *models.WorkingSet) error {
	stored := *ws
	stored.Groups = nil

	raw, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.cache.Set(ctx, sessionKeyPrefix+ws.SessionID, raw, s.ttl); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// take splits list into the orders named by rowIDs (in rowIDs order) and the rest
func take(list []*models.Order, rowIDs []int64) ([]*models.Order, []*models.Order, error) {
	if len(rowIDs) == 0 {
		return nil, nil, fmt.Errorf("%w: no RowIDs given", ErrInvalidRequest)
	}

	byID := make(map[int64]*models.Order, len(list))
	for _, o := range list {
		byID[o.RowID] = o
	}

	wanted := make(map[int64]bool, len(rowIDs))
	taken := make([]*models.Order, 0, len(rowIDs))
	for _, id := range rowIDs {
		o, ok := byID[id]
		if !ok {
			return nil, nil, fmt.Errorf("%w: RowID %d", ErrUnknownRow, id)
		}
		if wanted[id] {
			return nil, nil, fmt.Errorf("%w: RowID %d given twice", ErrInvalidRequest, id)
		}
		wanted[id] = true
		taken = append(taken, o)
	}

	rest := make([]*models.Order, 0, len(list)-len(taken))
	for _, o := range list {
		if !wanted[o.RowID] {
			rest = append(rest, o)
		}
	}

	return taken, rest, nil
}

// applyReorder applies a move-only patch to the RowID sequence of orders
func applyReorder(orders []*models.Order, patchJSON []byte) ([]*models.Order, error) {
	ids := make([]int64, len(orders))
	byID := make(map[int64]*models.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.RowID
		byID[o.RowID] = o
	}

	doc, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to encode row ids: %w", err)
	}

	patch, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", validation.ErrInvalidPatch, err)
	}

	out, err := patch.Apply(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", validation.ErrInvalidPatch, err)
	}

	var reordered []int64
	if err := json.Unmarshal(out, &reordered); err != nil {
		return nil, fmt.Errorf("%w: %v", validation.ErrInvalidPatch, err)
	}
	if len(reordered) != len(orders) {
		return nil, fmt.Errorf("%w: patch changed the number of orders", validation.ErrInvalidPatch)
	}

	result := make([]*models.Order, len(reordered))
	for i, id := range reordered {
		o, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: RowID %d", ErrUnknownRow, id)
		}
		delete(byID, id)
		result[i] = o
	}

	return result, nil
}

// sortByScheduledTime orders by scheduled time; unscheduled rows go last
func sortByScheduledTime(orders []*models.Order) []*models.Order {
	sorted := append([]*models.Order(nil), orders...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].ScheduledTime, sorted[j].ScheduledTime
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return sorted
}
