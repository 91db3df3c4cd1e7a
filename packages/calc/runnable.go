package calc

import (
	"context"
	"fmt"
)

// RunnableModel provides a chainable interface for building and
// calculating a model. It tracks the first error internally; every step
// after it is a no-op.
type RunnableModel struct {
	model  *Model
	result *Model
	opts   []Option
	err    error
}

// NewRunnableModel creates an empty RunnableModel.
func NewRunnableModel(opts ...Option) *RunnableModel {
	return &RunnableModel{model: NewModel(), opts: opts}
}

// Literal adds a scalar with a fixed value (chainable)
func (r *RunnableModel) Literal(name string, value float64) *RunnableModel {
	if r.err != nil {
		return r
	}
	r.model.AddScalar(Literal(name, value))
	return r
}

// Formula adds a computed scalar (chainable)
func (r *RunnableModel) Formula(name, formula string) *RunnableModel {
	if r.err != nil {
		return r
	}
	r.model.AddScalar(Formula(name, formula))
	return r
}

// Table adds a table (chainable)
func (r *RunnableModel) Table(t *Table) *RunnableModel {
	if r.err != nil {
		return r
	}
	if t == nil {
		r.err = NewApplicationError(InvalidArgument, "Table is nil")
		return r
	}
	r.model.AddTable(t)
	return r
}

// Scenario adds a scenario (chainable)
func (r *RunnableModel) Scenario(name string, overrides map[string]float64) *RunnableModel {
	if r.err != nil {
		return r
	}
	r.model.AddScenario(name, overrides)
	return r
}

// Calculate runs the calculator on the model built so far (chainable).
// The builder keeps its inputs, so calling it again recalculates.
func (r *RunnableModel) Calculate(ctx context.Context) *RunnableModel {
	if r.err != nil {
		return r
	}
	r.result, r.err = NewArrayCalculator(r.model, r.opts...).CalculateAll(ctx)
	return r
}

// Run calculates the model and returns the result and any error.
// typically the last method in the chain
func (r *RunnableModel) Run(ctx context.Context) (*Model, error) {
	r.Calculate(ctx)
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

// RunOrPanic calculates the model and panics if there's an error
func (r *RunnableModel) RunOrPanic(ctx context.Context) *Model {
	model, err := r.Run(ctx)
	if err != nil {
		panic(err)
	}
	return model
}

// Error returns the current error state
func (r *RunnableModel) Error() error {
	return r.err
}

// Model returns the model being built. use with caution as it bypasses
// error tracking.
func (r *RunnableModel) Model() *Model {
	return r.model
}

// Result returns the model produced by the last successful Calculate.
func (r *RunnableModel) Result() *Model {
	return r.result
}

// Value returns a calculated scalar, recording an error if the model has
// not been calculated or the scalar is unknown.
func (r *RunnableModel) Value(name string) float64 {
	if r.err != nil {
		return 0
	}
	if r.result == nil {
		r.err = NewApplicationError(FailedPrecondition, fmt.Sprintf("Scalar %s read before Calculate", name))
		return 0
	}
	v, err := r.result.Scalar(name)
	if err != nil {
		r.err = err
		return 0
	}
	n, err := v.Float()
	if err != nil {
		r.err = err
	}
	return n
}

// Reset clears the error state (chainable)
func (r *RunnableModel) Reset() *RunnableModel {
	r.err = nil
	return r
}

// Then applies fn to the chain (chainable)
func (r *RunnableModel) Then(fn func(*RunnableModel) *RunnableModel) *RunnableModel {
	if r.err != nil {
		return r
	}
	return fn(r)
}

// OnError replaces the current error with the result of fn (chainable)
func (r *RunnableModel) OnError(fn func(error) error) *RunnableModel {
	if r.err != nil {
		r.err = fn(r.err)
	}
	return r
}

// If applies fn only when condition holds (chainable)
func (r *RunnableModel) If(condition bool, fn func(*RunnableModel) *RunnableModel) *RunnableModel {
	if r.err != nil || !condition {
		return r
	}
	return fn(r)
}
