package models

import (
	"time"
)

// WorkingSet is the per-session planner state.
// Unscheduled holds sequencing candidates, Scheduled holds the arranged list,
// Groups is derived from Scheduled and rebuilt on every change.
type WorkingSet struct {
	SessionID   string           `json:"session_id"`
	Query       OrderQuery       `json:"query"`
	TaktSeconds int              `json:"takt_seconds"`
	Identity    Identity         `json:"identity"`
	Unscheduled []*Order         `json:"unscheduled"`
	Scheduled   []*Order         `json:"scheduled"`
	Groups      []*MaterialGroup `json:"groups"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Mode returns the session's workflow
func (w *WorkingSet) Mode() Mode {
	return w.Query.Mode
}
