package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mpas/sequencer/cmd/sequencer/models"
	"github.com/mpas/sequencer/cmd/sequencer/repository"
	"github.com/mpas/sequencer/cmd/sequencer/scheduling"
	"github.com/mpas/sequencer/common/config"
	"github.com/mpas/sequencer/common/logger"
	"github.com/mpas/sequencer/common/metrics"
	"github.com/mpas/sequencer/common/queue"
)

// ScheduleService stamps order lists and commits them
type ScheduleService struct {
	store      OrderStore
	anchors    *AnchorService
	calculator *scheduling.Calculator
	lines      *config.LineTable
	queue      queue.Queue // nil disables commit events
	metrics    *metrics.Recorder
	log        *logger.Logger
}

// NewScheduleService creates a new schedule service
func NewScheduleService(
	store OrderStore,
	anchors *AnchorService,
	calculator *scheduling.Calculator,
	lines *config.LineTable,
	q queue.Queue,
	m *metrics.Recorder,
	log *logger.Logger,
) *ScheduleService {
	return &ScheduleService{
		store:      store,
		anchors:    anchors,
		calculator: calculator,
		lines:      lines,
		queue:      q,
		metrics:    m,
		log:        log,
	}
}

// TaktFor resolves the interval for plant/line. A positive override wins;
// a negative one is rejected.
func (s *ScheduleService) TaktFor(plant, line string, override int) (int, error) {
	switch {
	case override > 0:
		return override, nil
	case override < 0:
		return 0, fmt.Errorf("%w: got %d", scheduling.ErrInvalidInterval, override)
	}

	takt := s.lines.Takt(plant, line)
	if takt <= 0 {
		return 0, fmt.Errorf("%w: no takt configured for %s/%s", scheduling.ErrInvalidInterval, plant, line)
	}
	return takt, nil
}

// Schedule stamps orders starting after the plant's anchor
func (s *ScheduleService) Schedule(ctx context.Context, plant string, takt int, orders []*models.Order) (scheduling.Anchor, error) {
	var anchor scheduling.Anchor
	if len(orders) > 0 {
		anchor = s.anchors.Lookup(ctx, plant)
	}

	if _, err := s.calculator.ComputeSchedule(orders, anchor, takt); err != nil {
		return anchor, err
	}

	s.metrics.RecordScheduled(len(orders))
	return anchor, nil
}

// PreviewRequest asks for a stateless schedule of a posted list
type PreviewRequest struct {
	Plant       string          `json:"plant"`
	Line        string          `json:"line"`
	TaktSeconds int             `json:"takt_seconds"`
	Anchor      *time.Time      `json:"anchor,omitempty"` // skips the lookup when set
	Orders      []*models.Order `json:"orders"`
}

// PreviewResult is the stamped list and its material groups
type PreviewResult struct {
	Anchor      *time.Time              `json:"anchor"`
	TaktSeconds int                     `json:"takt_seconds"`
	Orders      []*models.Order         `json:"orders"`
	Groups      []*models.MaterialGroup `json:"groups"`
}

// Preview runs the calculator and grouper without touching storage state
func (s *ScheduleService) Preview(ctx context.Context, req *PreviewRequest) (*PreviewResult, error) {
	if req.Plant == "" && req.Anchor == nil {
		return nil, fmt.Errorf("%w: plant or anchor is required", ErrInvalidRequest)
	}

	takt, err := s.TaktFor(req.Plant, req.Line, req.TaktSeconds)
	if err != nil {
		return nil, err
	}

	var anchor scheduling.Anchor
	switch {
	case req.Anchor != nil:
		anchor = scheduling.FoundAnchor(*req.Anchor)
	case len(req.Orders) > 0:
		anchor = s.anchors.Lookup(ctx, req.Plant)
	}

	orders := req.Orders
	if orders == nil {
		orders = []*models.Order{}
	}

	stamped, err := s.calculator.ComputeSchedule(orders, anchor, takt)
	if err != nil {
		return nil, err
	}

	groups := scheduling.BuildGroups(stamped)
	s.metrics.RecordGroups(len(groups))

	return &PreviewResult{
		Anchor:      anchor.Ptr(),
		TaktSeconds: takt,
		Orders:      stamped,
		Groups:      groups,
	}, nil
}

// CommitRequest submits stamped rows to storage
type CommitRequest struct {
	BatchID  uuid.UUID // zero generates one
	Mode     models.Mode
	Plant    string
	Identity models.Identity
	Rows     []models.CommitRow
}

// Commit writes a batch all-or-nothing. An empty batch is a no-op and a
// replayed batch ID is reported as a duplicate, not an error.
func (s *ScheduleService) Commit(ctx context.Context, req *CommitRequest) (*models.CommitResult, error) {
	if err := requireCommitMode(req.Mode); err != nil {
		return nil, err
	}

	identity := req.Identity.WithDefaults()
	batchID := req.BatchID
	if batchID == uuid.Nil {
		batchID = uuid.New()
	}

	result := &models.CommitResult{
		BatchID:  batchID,
		Mode:     req.Mode.String(),
		Rows:     len(req.Rows),
		Username: identity.Username,
		ClientID: identity.ClientID,
	}
	if len(req.Rows) == 0 {
		return result, nil
	}

	rows, plants, err := commitRows(req.Plant, req.Rows)
	if err != nil {
		return nil, err
	}

	batch := &models.CommitBatch{
		BatchID:  batchID,
		Mode:     req.Mode,
		Plant:    plants[0],
		Identity: identity,
		Rows:     rows,
	}

	log := s.log.WithPlant(batch.Plant).WithFields(map[string]any{
		"batch_id": batchID.String(),
		"mode":     req.Mode.String(),
	})

	start := time.Now()
	err = s.store.CommitBatch(ctx, batch)
	elapsed := time.Since(start)

	switch {
	case errors.Is(err, repository.ErrDuplicateBatch):
		s.metrics.RecordCommit(req.Mode.String(), metrics.ResultDuplicate, len(rows), elapsed)
		log.Info("batch already committed", "rows", len(rows))
		result.Duplicate = true
		return result, nil

	case errors.Is(err, repository.ErrOrderNotFound):
		s.metrics.RecordCommit(req.Mode.String(), metrics.ResultRejected, len(rows), elapsed)
		log.Warn("batch rejected", "error", err)
		return nil, err

	case err != nil:
		s.metrics.RecordCommit(req.Mode.String(), metrics.ResultError, len(rows), elapsed)
		log.Error("commit failed", "error", err)
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}

	s.metrics.RecordCommit(req.Mode.String(), metrics.ResultOK, len(rows), elapsed)
	log.Info("batch committed",
		"rows", len(rows),
		"username", identity.Username,
		"clientid", identity.ClientID,
		"duration_ms", elapsed.Milliseconds(),
	)

	for _, plant := range plants {
		s.anchors.Invalidate(ctx, plant)
	}
	s.publishCommitted(ctx, batch)

	return result, nil
}

// commitRows normalizes times and resolves each row's plant, falling back to
// the batch plant. Every row needs a plant so its cached anchor can be dropped.
// plants lists the distinct plants, batch plant first.
func commitRows(batchPlant string, in []models.CommitRow) ([]models.CommitRow, []string, error) {
	rows := make([]models.CommitRow, len(in))
	var plants []string
	seen := make(map[string]bool)
	if batchPlant != "" {
		plants = append(plants, batchPlant)
		seen[batchPlant] = true
	}

	for i, r := range in {
		plant := r.PlantCode
		if plant == "" {
			plant = batchPlant
		}
		if plant == "" {
			return nil, nil, fmt.Errorf("%w: row %d has no plant", ErrInvalidRequest, r.RowID)
		}
		if !seen[plant] {
			seen[plant] = true
			plants = append(plants, plant)
		}
		rows[i] = models.CommitRow{
			RowID:         r.RowID,
			ScheduledTime: scheduling.Normalize(r.ScheduledTime),
			PlantCode:     plant,
		}
	}

	return rows, plants, nil
}

func (s *ScheduleService) publishCommitted(ctx context.Context, batch *models.CommitBatch) {
	if s.queue == nil {
		return
	}

	payload, err := json.Marshal(CommitEvent{
		BatchID:  batch.BatchID,
		Mode:     batch.Mode.String(),
		Plant:    batch.Plant,
		Rows:     len(batch.Rows),
		Username: batch.Identity.Username,
	})
	if err != nil {
		s.log.Warn("failed to encode commit event", "error", err)
		return
	}

	if err := s.queue.Publish(ctx, TopicCommitted, batch.Plant, payload); err != nil {
		s.log.WithPlant(batch.Plant).Warn("failed to publish commit event", "error", err)
	}
}
