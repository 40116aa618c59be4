package service

import (
	"context"
	"fmt"

	"github.com/mpas/sequencer/cmd/sequencer/filter"
	"github.com/mpas/sequencer/cmd/sequencer/models"
	"github.com/mpas/sequencer/common/logger"
)

// OrderService loads candidate orders and applies the named filter modes
type OrderService struct {
	store     OrderStore
	evaluator *filter.Evaluator
	log       *logger.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store OrderStore, evaluator *filter.Evaluator, log *logger.Logger) *OrderService {
	return &OrderService{
		store:     store,
		evaluator: evaluator,
		log:       log,
	}
}

// List runs one storage query and filters the result by mode.
// Unknown modes return the unfiltered set.
func (s *OrderService) List(ctx context.Context, q models.OrderQuery) ([]*models.Order, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	// Reject a bad expression before touching the database
	if q.Filter != "" {
		if err := s.evaluator.Compile(q.Filter); err != nil {
			return nil, err
		}
	}

	rows, err := s.store.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}

	filtered, err := s.evaluator.Apply(q.Mode, q.Filter, rows)
	if err != nil {
		return nil, err
	}

	s.log.WithPlant(q.Plant).Info("orders loaded",
		"line", q.Line,
		"mode", q.Mode.String(),
		"material", q.Material,
		"rows", len(rows),
		"kept", len(filtered),
	)

	return filtered, nil
}

// ServerVersion reports the database server version (connectivity check)
func (s *OrderService) ServerVersion(ctx context.Context) (string, error) {
	return s.store.ServerVersion(ctx)
}
