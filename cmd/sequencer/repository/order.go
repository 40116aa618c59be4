package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mpas/sequencer/cmd/sequencer/models"
	"github.com/mpas/sequencer/common/db"
)

var (
	// ErrOrderNotFound rejects a commit batch that references a missing row
	ErrOrderNotFound = errors.New("order not found")

	// ErrDuplicateBatch is returned when a batch ID was already committed
	ErrDuplicateBatch = errors.New("batch already committed")

	// ErrUnsupportedMode is returned for commits outside the two named modes
	ErrUnsupportedMode = errors.New("unsupported commit mode")
)

const listOrdersSQL = `
	SELECT row_id, order_number, plant_code, line_code, material_code, material_desc,
	       due_date, sflag, order_status, scheduled_time
	FROM mpas_orders
	WHERE plant_code = $1
	  AND line_code = $2
	  AND due_date >= $3
	  AND due_date <= $4
	  AND ($5 = 'ALL' OR material_code = $5)
	ORDER BY due_date, row_id
`

const lastScheduledSQL = `
	SELECT MAX(scheduled_time)
	FROM mpas_orders
	WHERE plant_code = $1 AND scheduled_time IS NOT NULL
`

const insertBatchSQL = `
	INSERT INTO mpas_sequence_batches (batch_id, mode, plant_code, row_count, username, client_id)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (batch_id) DO NOTHING
`

// Sequencing marks the row scheduled; resequencing only moves it
const sequenceUpdateSQL = `
	UPDATE mpas_orders
	SET scheduled_time = $2, sflag = 2, order_status = 'Ready',
	    updated_by = $3, client_id = $4, updated_at = NOW()
	WHERE row_id = $1
`

const resequenceUpdateSQL = `
	UPDATE mpas_orders
	SET scheduled_time = $2, updated_by = $3, client_id = $4, updated_at = NOW()
	WHERE row_id = $1
`

// UpdateStatement returns the per-row update for a commit mode
func UpdateStatement(mode models.Mode) (string, error) {
	switch mode {
	case models.ModeSequencing:
		return sequenceUpdateSQL, nil
	case models.ModeResequencing:
		return resequenceUpdateSQL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}
}

// Pool is the part of the connection pool the repository uses.
// *db.DB satisfies it.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderRepository handles database operations for production orders
type OrderRepository struct {
	pool Pool
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(pool Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// ServerVersion returns the database server version string
func (r *OrderRepository) ServerVersion(ctx context.Context) (string, error) {
	return db.ServerVersion(ctx, r.pool)
}

// List returns candidate orders for a plant/line/due-date range.
// Mode filtering happens in the service layer.
func (r *OrderRepository) List(ctx context.Context, q models.OrderQuery) ([]*models.Order, error) {
	material := q.Material
	if material == "" {
		material = models.AllMaterials
	}

	rows, err := r.pool.Query(ctx, listOrdersSQL, q.Plant, q.Line, q.From, q.To, material)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		o := &models.Order{}
		var sflag int16
		if err := rows.Scan(
			&o.RowID,
			&o.OrderNumber,
			&o.PlantCode,
			&o.LineCode,
			&o.MaterialCode,
			&o.MaterialDesc,
			&o.DueDate,
			&sflag,
			&o.OrderStatus,
			&o.ScheduledTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.Sflag = int(sflag)
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	return orders, nil
}

// LastScheduledTime returns the latest committed scheduled time for a plant.
// found is false when the plant has no scheduled order.
func (r *OrderRepository) LastScheduledTime(ctx context.Context, plant string) (time.Time, bool, error) {
	var last *time.Time
	if err := r.pool.QueryRow(ctx, lastScheduledSQL, plant).Scan(&last); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query last scheduled time: %w", err)
	}

	if last == nil {
		return time.Time{}, false, nil
	}
	return *last, true, nil
}

// CommitBatch applies every row of the batch in one transaction.
// A missing row rolls the whole batch back; a replayed batch ID changes nothing.
func (r *OrderRepository) CommitBatch(ctx context.Context, batch *models.CommitBatch) error {
	update, err := UpdateStatement(batch.Mode)
	if err != nil {
		return err
	}

	return db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, insertBatchSQL,
			batch.BatchID,
			string(batch.Mode),
			batch.Plant,
			len(batch.Rows),
			batch.Identity.Username,
			batch.Identity.ClientID,
		)
		if err != nil {
			return fmt.Errorf("failed to record batch: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateBatch, batch.BatchID)
		}

		b := &pgx.Batch{}
		for _, row := range batch.Rows {
			b.Queue(update, row.RowID, row.ScheduledTime, batch.Identity.Username, batch.Identity.ClientID)
		}
		return execBatch(tx.SendBatch(ctx, b), batch.Rows)
	})
}

func execBatch(br pgx.BatchResults, rows []models.CommitRow) error {
	defer br.Close()

	for _, row := range rows {
		tag, err := br.Exec()
		if err != nil {
			return fmt.Errorf("failed to update order %d: %w", row.RowID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: RowID %d", ErrOrderNotFound, row.RowID)
		}
	}

	return nil
}
