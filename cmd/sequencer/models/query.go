package models

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects which named filter the order source applies
type Mode string

const (
	ModeSequencing   Mode = "Sequencing"
	ModeResequencing Mode = "Resequencing"
	ModeAll          Mode = ""
)

// ParseMode accepts the canonical names and the short forms the UI sends.
// Unknown values map to ModeAll, which returns the unfiltered set.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sequence", "sequencing":
		return ModeSequencing
	case "resequence", "resequencing":
		return ModeResequencing
	default:
		return ModeAll
	}
}

// String returns the label used in logs and metrics
func (m Mode) String() string {
	if m == ModeAll {
		return "All"
	}
	return string(m)
}

// AllMaterials is the material filter value that disables material filtering
const AllMaterials = "ALL"

// OrderQuery selects candidate orders
type OrderQuery struct {
	Plant    string    `json:"plant"`
	Line     string    `json:"line"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Material string    `json:"material"`
	Mode     Mode      `json:"mode"`

	// Optional extra CEL predicate over the order
	Filter string `json:"filter,omitempty"`
}

// Validate checks required fields and fills defaults
func (q *OrderQuery) Validate() error {
	if q.Plant == "" {
		return fmt.Errorf("plant is required")
	}
	if q.Line == "" {
		return fmt.Errorf("line is required")
	}
	if q.From.IsZero() || q.To.IsZero() {
		return fmt.Errorf("from and to are required")
	}
	if q.To.Before(q.From) {
		return fmt.Errorf("to must not be before from")
	}
	if q.Material == "" {
		q.Material = AllMaterials
	}
	return nil
}
