package filter

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/mpas/sequencer/cmd/sequencer/models"
)

// ErrInvalidExpression is returned for expressions that fail to compile
var ErrInvalidExpression = errors.New("invalid filter expression")

// Named mode predicates
const (
	SequencingExpr   = `order.Sflag == 0 && order.OrderStatus == "Open"`
	ResequencingExpr = `order.Sflag == 2 && order.OrderStatus == "Ready"`
)

// ModeExpression returns the predicate for a mode, or "" when the mode is unfiltered
func ModeExpression(mode models.Mode) string {
	switch mode {
	case models.ModeSequencing:
		return SequencingExpr
	case models.ModeResequencing:
		return ResequencingExpr
	default:
		return ""
	}
}

// MaxExpressionLength caps caller-supplied filter expressions
const MaxExpressionLength = 1024

// CostLimit bounds the runtime cost of one caller filter evaluation
const CostLimit = 10_000

// Evaluator evaluates order predicates written in CEL (Common Expression Language).
// Only the named mode predicates are kept compiled; caller filters arrive per
// request and are compiled for that request alone.
type Evaluator struct {
	env   *cel.Env
	modes map[string]cel.Program
}

// NewEvaluator creates an evaluator with an `order` variable in scope
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("order", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	e := &Evaluator{
		env:   env,
		modes: make(map[string]cel.Program, 2),
	}
	for _, expr := range []string{SequencingExpr, ResequencingExpr} {
		prg, err := e.compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile mode predicate %q: %w", expr, err)
		}
		e.modes[expr] = prg
	}

	return e, nil
}

// Compile checks a caller filter without keeping the program
func (e *Evaluator) Compile(expr string) error {
	_, err := e.program(expr)
	return err
}

// Apply keeps the orders matching the mode predicate and the optional extra
// expression, preserving input order
func (e *Evaluator) Apply(mode models.Mode, extra string, orders []*models.Order) ([]*models.Order, error) {
	prgs := make([]cel.Program, 0, 2)
	if expr := ModeExpression(mode); expr != "" {
		prgs = append(prgs, e.modes[expr])
	}
	if extra != "" {
		prg, err := e.program(extra)
		if err != nil {
			return nil, err
		}
		prgs = append(prgs, prg)
	}
	if len(prgs) == 0 {
		return orders, nil
	}

	kept := make([]*models.Order, 0, len(orders))
	for _, o := range orders {
		match := true
		for _, prg := range prgs {
			ok, err := eval(prg, o)
			if err != nil {
				return nil, err
			}
			if !ok {
				match = false
				break
			}
		}
		if match {
			kept = append(kept, o)
		}
	}

	return kept, nil
}

// CacheSize returns the number of programs held between requests
func (e *Evaluator) CacheSize() int {
	return len(e.modes)
}

// program returns the shared mode program or compiles a caller filter
func (e *Evaluator) program(expr string) (cel.Program, error) {
	if prg, ok := e.modes[expr]; ok {
		return prg, nil
	}
	if len(expr) > MaxExpressionLength {
		return nil, fmt.Errorf("%w: expression longer than %d bytes", ErrInvalidExpression, MaxExpressionLength)
	}
	return e.compile(expr)
}

func (e *Evaluator) compile(expr string) (cel.Program, error) {
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) && !ast.OutputType().IsExactType(cel.DynType) {
		return nil, fmt.Errorf("%w: expression must return bool, got %s", ErrInvalidExpression, ast.OutputType())
	}

	prg, err := e.env.Program(ast, cel.CostLimit(CostLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}
	return prg, nil
}

func eval(prg cel.Program, o *models.Order) (bool, error) {
	out, _, err := prg.Eval(map[string]interface{}{
		"order": activation(o),
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: expression did not return boolean, got %T", ErrInvalidExpression, out.Value())
	}
	return result, nil
}

// activation exposes an order to CEL under its JSON field names
func activation(o *models.Order) map[string]interface{} {
	vars := map[string]interface{}{
		"RowID":            o.RowID,
		"OrderNumber":      o.OrderNumber,
		"PlantCode":        o.PlantCode,
		"LineCode":         o.LineCode,
		"MaterialCode":     o.MaterialCode,
		"MaterialDesc":     o.MaterialDesc,
		"Sflag":            int64(o.Sflag),
		"OrderStatus":      o.OrderStatus,
		"HasScheduledTime": o.ScheduledTime != nil,
	}
	if o.ScheduledTime != nil {
		vars["ScheduledTime"] = *o.ScheduledTime
	}
	if o.DueDate != nil {
		vars["DueDate"] = *o.DueDate
	}
	return vars
}
