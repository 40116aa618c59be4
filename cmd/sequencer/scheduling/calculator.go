package scheduling

import (
	"errors"
	"fmt"
	"time"

	"github.com/mpas/sequencer/cmd/sequencer/models"
)

var (
	// ErrInvalidInterval is returned for a non-positive takt interval
	ErrInvalidInterval = errors.New("interval must be a positive number of seconds")

	// ErrAnchorLookupFailed is returned when scheduling from a failed anchor lookup
	ErrAnchorLookupFailed = errors.New("anchor lookup failed")
)

// Calculator assigns scheduled times to an ordered list of orders
type Calculator struct {
	now func() time.Time
}

// CalculatorOption configures a Calculator
type CalculatorOption func(*Calculator)

// WithClock replaces the wall clock used when no anchor exists
func WithClock(now func() time.Time) CalculatorOption {
	return func(c *Calculator) {
		c.now = now
	}
}

// NewCalculator creates a calculator using the wall clock
func NewCalculator(opts ...CalculatorOption) *Calculator {
	c := &Calculator{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start returns the first slot: now without an anchor, otherwise the slot
// after the anchor. The result has no sub-second component.
func (c *Calculator) Start(anchor Anchor, intervalSeconds int) (time.Time, error) {
	if intervalSeconds <= 0 {
		return time.Time{}, fmt.Errorf("%w: got %d", ErrInvalidInterval, intervalSeconds)
	}

	switch anchor.Kind() {
	case AnchorFound:
		at, _ := anchor.Time()
		return Normalize(at.Add(seconds(intervalSeconds))), nil
	case AnchorLookupFailed:
		return time.Time{}, fmt.Errorf("%w: %v", ErrAnchorLookupFailed, anchor.Err())
	default:
		return Normalize(c.now()), nil
	}
}

// ComputeSchedule stamps orders[i].ScheduledTime = start + i*interval in the
// given order. The slice is returned as is; nothing is sorted, added or removed.
// Empty input returns an empty result without consulting the anchor.
func (c *Calculator) ComputeSchedule(orders []*models.Order, anchor Anchor, intervalSeconds int) ([]*models.Order, error) {
	if intervalSeconds <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidInterval, intervalSeconds)
	}
	if len(orders) == 0 {
		return []*models.Order{}, nil
	}

	start, err := c.Start(anchor, intervalSeconds)
	if err != nil {
		return nil, err
	}

	step := seconds(intervalSeconds)
	for i, o := range orders {
		ts := Normalize(start.Add(time.Duration(i) * step))
		o.ScheduledTime = &ts
	}

	return orders, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
