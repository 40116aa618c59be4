package service

import (
	"context"
	"errors"
	"time"

	"github.com/mpas/sequencer/cmd/sequencer/models"
)

var (
	// ErrInvalidRequest wraps caller input the services reject
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidMode is returned where only Sequencing or Resequencing is allowed
	ErrInvalidMode = errors.New("mode must be Sequencing or Resequencing")

	// ErrSessionNotFound is returned for unknown or expired sessions
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnknownRow is returned when a RowID is not in the expected list
	ErrUnknownRow = errors.New("row not in working set")
)

// OrderStore is the storage collaborator: order source, anchor lookup and commit sink.
// repository.OrderRepository implements it.
type OrderStore interface {
	List(ctx context.Context, q models.OrderQuery) ([]*models.Order, error)
	LastScheduledTime(ctx context.Context, plant string) (time.Time, bool, error)
	CommitBatch(ctx context.Context, batch *models.CommitBatch) error
	ServerVersion(ctx context.Context) (string, error)
}

// Publisher broadcasts events to other instances (Redis pub/sub)
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

func requireCommitMode(mode models.Mode) error {
	if mode != models.ModeSequencing && mode != models.ModeResequencing {
		return ErrInvalidMode
	}
	return nil
}
