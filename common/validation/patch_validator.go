package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPatch is returned for patch operations a reorder cannot accept
var ErrInvalidPatch = errors.New("invalid patch")

// MaxOperations caps the number of operations in one reorder patch
const MaxOperations = 500

// PatchValidator validates JSON Patch operations that reorder a list.
// Only "move" (and "test") between existing indexes is allowed, so a
// patch can never add or drop an element.
type PatchValidator struct {
	maxOps int
}

// NewPatchValidator creates a new patch validator
func NewPatchValidator() *PatchValidator {
	return &PatchValidator{maxOps: MaxOperations}
}

// ValidateOperations validates all operations against a list of length n
func (v *PatchValidator) ValidateOperations(operations []map[string]interface{}, n int) error {
	if len(operations) == 0 {
		return fmt.Errorf("%w: no operations", ErrInvalidPatch)
	}
	if len(operations) > v.maxOps {
		return fmt.Errorf("%w: %d operations exceeds limit of %d", ErrInvalidPatch, len(operations), v.maxOps)
	}

	for i, op := range operations {
		if err := v.validateOperation(op, i, n); err != nil {
			return err
		}
	}

	return nil
}

// validateOperation validates a single operation
func (v *PatchValidator) validateOperation(op map[string]interface{}, index, n int) error {
	opType, ok := op["op"].(string)
	if !ok {
		return fmt.Errorf("%w: operation %d: missing or invalid 'op' field", ErrInvalidPatch, index)
	}

	path, ok := op["path"].(string)
	if !ok {
		return fmt.Errorf("%w: operation %d: missing or invalid 'path' field", ErrInvalidPatch, index)
	}

	switch opType {
	case "move":
		from, ok := op["from"].(string)
		if !ok {
			return fmt.Errorf("%w: operation %d: 'from' required for move operation", ErrInvalidPatch, index)
		}
		if err := checkIndex(from, n, index, "from"); err != nil {
			return err
		}
		return checkIndex(path, n, index, "path")

	case "test":
		if _, ok := op["value"]; !ok {
			return fmt.Errorf("%w: operation %d: 'value' required for test operation", ErrInvalidPatch, index)
		}
		return checkIndex(path, n, index, "path")

	default:
		return fmt.Errorf("%w: operation %d: unsupported operation type: %s (only move and test reorder a list)", ErrInvalidPatch, index, opType)
	}
}

// checkIndex requires pointer to be "/<i>" with 0 <= i < n
func checkIndex(pointer string, n, opIndex int, field string) error {
	if !strings.HasPrefix(pointer, "/") {
		return fmt.Errorf("%w: operation %d: %s %q must be a list index", ErrInvalidPatch, opIndex, field, pointer)
	}

	i, err := strconv.Atoi(pointer[1:])
	if err != nil || i < 0 || strings.HasPrefix(pointer[1:], "+") {
		return fmt.Errorf("%w: operation %d: %s %q must be a list index", ErrInvalidPatch, opIndex, field, pointer)
	}
	if i >= n {
		return fmt.Errorf("%w: operation %d: %s index %d out of range (list has %d entries)", ErrInvalidPatch, opIndex, field, i, n)
	}

	return nil
}
