package calc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/copystructure"
	"github.com/pkg/errors"

	"github.com/mollendorff-ai/forge-sub003/internal/ctxlog"
)

// Phase is a stage of a calculation run. A run moves through the phases
// in order and stops at the first error.
type Phase string

const (
	PhaseParse           Phase = "parse"
	PhaseResolveScalars  Phase = "resolve_scalars"
	PhaseEvaluateScalars Phase = "evaluate_scalars"
	PhaseResolveTables   Phase = "resolve_tables"
	PhaseEvaluateTables  Phase = "evaluate_tables"
	PhaseDone            Phase = "done"
)

// ArrayCalculator resolves every formula of a model. The input model is
// never modified; CalculateAll returns a resolved copy.
type ArrayCalculator struct {
	model     *Model
	cfg       *config
	evaluator *Evaluator
}

// NewArrayCalculator creates a calculator for model.
func NewArrayCalculator(model *Model, opts ...Option) *ArrayCalculator {
	cfg := newConfig(opts)
	return &ArrayCalculator{
		model:     model,
		cfg:       cfg,
		evaluator: newEvaluator(cfg),
	}
}

// CalculateAll runs the whole pipeline and returns a copy of the model in
// which every scalar has a value and every row formula has a column. The
// context only carries the logger; the run itself is not cancellable.
func (c *ArrayCalculator) CalculateAll(ctx context.Context) (*Model, error) {
	if c.model == nil {
		return nil, NewApplicationError(InvalidArgument, "Model is nil")
	}
	logger := c.logger(ctx).With("run_id", uuid.NewString())
	started := time.Now()

	run := &calculation{
		model:     c.model,
		evaluator: c.evaluator,
		logger:    logger,
		store:     newStorage(),
		scalars:   make(map[string]float64),
		columns:   make(map[string]map[string]ColumnValue),
		done:      make(map[string]bool),
	}
	run.resolver = newResolver(c.model, run.store)

	steps := []struct {
		phase Phase
		run   func() error
	}{
		{PhaseParse, run.parse},
		{PhaseResolveScalars, run.resolveScalars},
		{PhaseEvaluateScalars, run.evaluateScalars},
		{PhaseResolveTables, run.resolveTables},
		{PhaseEvaluateTables, run.evaluateTables},
	}
	for _, step := range steps {
		logger.Debug("calculation phase", "phase", step.phase)
		if err := step.run(); err != nil {
			logger.Error("calculation failed", "phase", step.phase, "error", err)
			return nil, err
		}
	}

	out, err := run.output()
	if err != nil {
		logger.Error("calculation failed", "phase", PhaseDone, "error", err)
		return nil, err
	}
	logger.Debug("calculation complete",
		"scalars", len(run.scalars),
		"tables", len(run.columns),
		"formulas", run.store.formulas.Count(),
		"duration", time.Since(started))
	return out, nil
}

// logger prefers a logger carried by ctx over the configured one.
func (c *ArrayCalculator) logger(ctx context.Context) hclog.Logger {
	if logger, ok := ctxlog.Lookup(ctx); ok {
		return logger.Named("calc")
	}
	if c.cfg.logger != nil {
		return c.cfg.logger.Named("calc")
	}
	return hclog.NewNullLogger()
}

// calculation is the state of a single CalculateAll run.
type calculation struct {
	model     *Model
	evaluator *Evaluator
	logger    hclog.Logger
	store     *storage
	resolver  *resolver
	ctx       *EvalContext

	scalarOrder  []string
	tableOrder   []string
	columnOrders map[string][]string

	scalars map[string]float64
	columns map[string]map[string]ColumnValue
	done    map[string]bool // formula scalars already evaluated
}

func (run *calculation) parse() error {
	if err := run.model.Validate(); err != nil {
		return err
	}
	if err := run.resolver.parse(); err != nil {
		return err
	}

	ctx := NewEvalContext()
	for name, v := range run.model.Scalars {
		if v.HasFormula() {
			ctx.Formulas[FormulaOwner{Name: name}] = struct{}{}
			continue
		}
		ctx.Scalars[name] = Number(*v.Value)
		run.scalars[name] = *v.Value
	}
	for name, t := range run.model.Tables {
		columns := make(map[string][]Value, len(t.Columns)+len(t.RowFormulas))
		for columnName, column := range t.Columns {
			columns[columnName] = column.Values.Values()
		}
		for columnName := range t.RowFormulas {
			ctx.Formulas[FormulaOwner{Table: name, Name: columnName}] = struct{}{}
		}
		ctx.Tables[name] = columns
		run.columns[name] = make(map[string]ColumnValue, len(t.RowFormulas))
	}
	for name, s := range run.model.Scenarios {
		ctx.Scenarios[name] = s.Overrides
	}
	run.ctx = ctx

	run.logger.Trace("formulas parsed",
		"distinct", run.store.formulas.Count(),
		"slots", run.store.formulas.TotalReferences(),
		"symbols", run.store.symbols.Count())
	return nil
}

func (run *calculation) resolveScalars() error {
	order, err := run.resolver.resolveScalarOrder()
	if err != nil {
		return err
	}
	run.scalarOrder = order
	return nil
}

// evaluateScalars evaluates the scalars that do not read row formula
// columns. The others wait for their tables.
func (run *calculation) evaluateScalars() error {
	for _, name := range run.scalarOrder {
		if run.resolver.isLate(name) {
			continue
		}
		if err := run.evaluateScalar(name); err != nil {
			return err
		}
	}
	return nil
}

func (run *calculation) resolveTables() error {
	order, columnOrders, err := run.resolver.resolveTableOrder()
	if err != nil {
		return err
	}
	run.tableOrder, run.columnOrders = order, columnOrders
	return nil
}

// evaluateTables evaluates each table after the late scalars its row
// formulas read, then the late scalars nothing in a table reads.
func (run *calculation) evaluateTables() error {
	for _, name := range run.tableOrder {
		if err := run.evaluateLateScalars(run.resolver.tableScalars[name]); err != nil {
			return err
		}
		if err := run.evaluateTable(name); err != nil {
			return err
		}
	}
	for _, name := range run.scalarOrder {
		if !run.done[name] {
			if err := run.evaluateScalar(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// evaluateLateScalars evaluates the given scalars in scalar order.
func (run *calculation) evaluateLateScalars(names []string) error {
	if len(names) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	for _, name := range run.scalarOrder {
		if wanted[name] && !run.done[name] {
			if err := run.evaluateScalar(name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (run *calculation) evaluateScalar(name string) error {
	result, err := run.evaluator.EvaluateAST(run.store.scalarASTs[name], run.ctx)
	if err != nil {
		return errors.Wrapf(err, "scalar %q", name)
	}
	n, err := scalarNumber(result)
	if err != nil {
		return errors.Wrapf(err, "scalar %q", name)
	}
	run.ctx.Scalars[name] = Number(n)
	run.scalars[name] = n
	run.done[name] = true
	run.logger.Trace("scalar evaluated", "name", name, "value", n)
	return nil
}

// scalarNumber stores a formula result in a scalar slot. Arrays have to be
// reduced by the formula itself.
func scalarNumber(v Value) (float64, error) {
	switch v.Type {
	case ValueNumber:
		return v.Num, nil
	case ValueBoolean:
		if v.Bool {
			return 1, nil
		}
		return 0, nil
	case ValueText:
		if n, ok := v.AsNumber(); ok {
			return n, nil
		}
		return 0, NewEvalError(ErrorKindTypeMismatch, "Scalar formulas must produce a number, got text %q", v.Str)
	case ValueArray:
		return 0, NewEvalError(ErrorKindTypeMismatch,
			"Scalar formulas must produce a single value, got an array of %d values; reduce it with an aggregation such as SUM", len(v.Items))
	default:
		return 0, NewEvalError(ErrorKindTypeMismatch, "Scalar formulas must produce a number, got no value")
	}
}

// evaluateTable evaluates the row formulas of a table once per row, in
// column dependency order.
func (run *calculation) evaluateTable(name string) error {
	t := run.model.Tables[name]
	rows := t.RowCount()
	tableCtx := run.ctx.ForTable(name, rows)
	for _, column := range run.columnOrders[name] {
		ast := run.store.rowASTs[name][column]
		values := make([]Value, rows)
		for row := range values {
			v, err := run.evaluator.EvaluateAST(ast, tableCtx.WithRow(row))
			if err != nil {
				return errors.Wrapf(err, "table %q column %q row %d", name, column, row)
			}
			values[row] = v
		}
		typed, err := columnFromValues(values)
		if err != nil {
			return errors.Wrapf(err, "table %q column %q", name, column)
		}
		run.ctx.Tables[name][column] = values
		run.columns[name][column] = typed
		run.logger.Trace("row formula evaluated", "table", name, "column", column, "type", typed.Type)
	}
	run.logger.Trace("table evaluated", "table", name, "rows", rows, "formulas", len(run.columnOrders[name]))
	return nil
}

// output deep copies the input model and fills in the computed values.
func (run *calculation) output() (*Model, error) {
	copied, err := copystructure.Copy(run.model)
	if err != nil {
		return nil, errors.Wrap(err, "copy model")
	}
	out, ok := copied.(*Model)
	if !ok {
		return nil, errors.Errorf("copy model: unexpected type %T", copied)
	}
	for name, v := range out.Scalars {
		value := run.scalars[name]
		v.Value = &value
	}
	for tableName, columns := range run.columns {
		t := out.Tables[tableName]
		for column, values := range columns {
			t.AddColumn(column, values)
		}
	}
	return out, nil
}
