package scheduling

import (
	"errors"
	"fmt"

	"github.com/mpas/sequencer/cmd/sequencer/models"
)

// ErrGroupIndex is returned for a group position outside the group list
var ErrGroupIndex = errors.New("group index out of range")

// BuildGroups partitions orders into maximal contiguous runs of the same
// material code. Runs separated by another material stay separate groups.
// Groups reference the input orders; concatenating their members
// reproduces the input.
func BuildGroups(orders []*models.Order) []*models.MaterialGroup {
	groups := make([]*models.MaterialGroup, 0)

	var current *models.MaterialGroup
	for _, o := range orders {
		if current == nil || current.MaterialCode != o.MaterialCode {
			if current != nil {
				groups = append(groups, current)
			}
			current = &models.MaterialGroup{
				MaterialCode:  o.MaterialCode,
				MaterialDesc:  o.MaterialDesc,
				Count:         1,
				Orders:        []*models.Order{o},
				ScheduledTime: NormalizePtr(o.ScheduledTime),
				GroupIndex:    len(groups),
			}
			continue
		}

		current.Count++
		current.Orders = append(current.Orders, o)
	}

	if current != nil {
		groups = append(groups, current)
	}

	return groups
}

// Flatten concatenates group members in group order
func Flatten(groups []*models.MaterialGroup) []*models.Order {
	n := 0
	for _, g := range groups {
		n += len(g.Orders)
	}

	orders := make([]*models.Order, 0, n)
	for _, g := range groups {
		orders = append(orders, g.Orders...)
	}
	return orders
}

// MoveGroup moves the material run at position from to position to and
// returns the resulting order list. Orders inside a run keep their order.
func MoveGroup(orders []*models.Order, from, to int) ([]*models.Order, error) {
	groups := BuildGroups(orders)
	if from < 0 || from >= len(groups) {
		return nil, fmt.Errorf("%w: from=%d groups=%d", ErrGroupIndex, from, len(groups))
	}
	if to < 0 || to >= len(groups) {
		return nil, fmt.Errorf("%w: to=%d groups=%d", ErrGroupIndex, to, len(groups))
	}
	if from == to {
		return Flatten(groups), nil
	}

	moved := groups[from]
	rest := make([]*models.MaterialGroup, 0, len(groups))
	rest = append(rest, groups[:from]...)
	rest = append(rest, groups[from+1:]...)

	reordered := make([]*models.MaterialGroup, 0, len(groups))
	reordered = append(reordered, rest[:to]...)
	reordered = append(reordered, moved)
	reordered = append(reordered, rest[to:]...)

	return Flatten(reordered), nil
}
