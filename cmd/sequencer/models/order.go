package models

import (
	"time"
)

// Scheduling flag values
const (
	SflagUnscheduled = 0
	SflagScheduled   = 2
)

// Order statuses the sequencer acts on; other values pass through
const (
	StatusOpen  = "Open"
	StatusReady = "Ready"
)

// Order represents one production order being scheduled
// Maps to: mpas_orders table
type Order struct {
	RowID        int64  `db:"row_id" json:"RowID"`
	OrderNumber  string `db:"order_number" json:"OrderNumber,omitempty"`
	PlantCode    string `db:"plant_code" json:"PlantCode"`
	LineCode     string `db:"line_code" json:"LineCode,omitempty"`
	MaterialCode string `db:"material_code" json:"MaterialCode"`

	// Display only
	MaterialDesc string `db:"material_desc" json:"MaterialDesc"`

	DueDate *time.Time `db:"due_date" json:"DueDate,omitempty"`

	// 0 = unscheduled, 2 = scheduled, other values reserved
	Sflag       int    `db:"sflag" json:"Sflag"`
	OrderStatus string `db:"order_status" json:"OrderStatus"`

	// Whole seconds once set
	ScheduledTime *time.Time `db:"scheduled_time" json:"ScheduledTime"`
}

// Clone returns a copy that shares no pointers with o
func (o *Order) Clone() *Order {
	c := *o
	if o.DueDate != nil {
		t := *o.DueDate
		c.DueDate = &t
	}
	if o.ScheduledTime != nil {
		t := *o.ScheduledTime
		c.ScheduledTime = &t
	}
	return &c
}

// MaterialGroup is a maximal contiguous run of orders sharing a material code.
// Orders references entries of the list it was built from.
type MaterialGroup struct {
	MaterialCode  string     `json:"MaterialCode"`
	MaterialDesc  string     `json:"MaterialDesc"`
	Count         int        `json:"Count"`
	Orders        []*Order   `json:"Orders"`
	ScheduledTime *time.Time `json:"ScheduledTime"`
	GroupIndex    int        `json:"GroupIndex"`
}
