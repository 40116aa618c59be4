package models

import (
	"time"

	"github.com/google/uuid"
)

// Identity fallbacks used when the caller supplies none
const (
	DefaultUsername = "SYSTEM"
	DefaultClientID = "UNKNOWN"
)

// Identity is the acting planner attached to every committed row
type Identity struct {
	Username string `json:"username"`
	ClientID string `json:"clientid"`
}

// WithDefaults fills missing fields with the fallback values
func (i Identity) WithDefaults() Identity {
	if i.Username == "" {
		i.Username = DefaultUsername
	}
	if i.ClientID == "" {
		i.ClientID = DefaultClientID
	}
	return i
}

// CommitRow is one order update in a commit batch.
// An empty PlantCode means the batch plant.
type CommitRow struct {
	RowID         int64     `json:"RowID"`
	ScheduledTime time.Time `json:"ScheduledTime"`
	PlantCode     string    `json:"PlantCode,omitempty"`
}

// CommitBatch is applied all-or-nothing by the commit sink
// Maps to: mpas_sequence_batches table (header) + mpas_orders (rows)
type CommitBatch struct {
	BatchID  uuid.UUID   `json:"batch_id"`
	Mode     Mode        `json:"mode"`
	Plant    string      `json:"plant"`
	Identity Identity    `json:"identity"`
	Rows     []CommitRow `json:"rows"`
}

// CommitResult reports the outcome of a commit
type CommitResult struct {
	BatchID   uuid.UUID `json:"batch_id"`
	Mode      string    `json:"mode"`
	Rows      int       `json:"rows"`
	Username  string    `json:"username"`
	ClientID  string    `json:"clientid"`
	Duplicate bool      `json:"duplicate,omitempty"`
}
