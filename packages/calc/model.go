package calc

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Variable is a named scalar. Before calculation either Value or Formula
// is set; a formula always wins. After calculation Value is populated.
type Variable struct {
	Name    string
	Value   *float64
	Formula string
}

// Literal creates a scalar with a fixed value.
func Literal(name string, value float64) *Variable {
	return &Variable{Name: name, Value: &value}
}

// Formula creates a scalar computed by formula.
func Formula(name, formula string) *Variable {
	return &Variable{Name: name, Formula: formula}
}

// HasFormula reports whether the scalar is computed.
func (v *Variable) HasFormula() bool {
	return v.Formula != ""
}

// Float returns the resolved value of the scalar.
func (v *Variable) Float() (float64, error) {
	if v.Value == nil {
		return 0, NewApplicationError(FailedPrecondition, fmt.Sprintf("Scalar %s has no value; run CalculateAll first", v.Name))
	}
	return *v.Value, nil
}

// ColumnType is the element type of a column.
type ColumnType uint8

const (
	ColumnNumber ColumnType = iota
	ColumnText
	ColumnBoolean
	ColumnDate // ISO 8601 date strings
)

var columnTypeNames = map[ColumnType]string{
	ColumnNumber:  "number",
	ColumnText:    "text",
	ColumnBoolean: "boolean",
	ColumnDate:    "date",
}

func (t ColumnType) String() string {
	if name, ok := columnTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ColumnType(%d)", t)
}

// ColumnValue is a homogeneous typed array. Numbers backs number columns,
// Strings backs text and date columns and Bools backs boolean columns.
type ColumnValue struct {
	Type    ColumnType
	Numbers []float64
	Strings []string
	Bools   []bool
}

func NumberColumn(values ...float64) ColumnValue {
	return ColumnValue{Type: ColumnNumber, Numbers: values}
}

func TextColumn(values ...string) ColumnValue {
	return ColumnValue{Type: ColumnText, Strings: values}
}

func BooleanColumn(values ...bool) ColumnValue {
	return ColumnValue{Type: ColumnBoolean, Bools: values}
}

func DateColumn(values ...string) ColumnValue {
	return ColumnValue{Type: ColumnDate, Strings: values}
}

// Len returns the number of rows.
func (c ColumnValue) Len() int {
	switch c.Type {
	case ColumnNumber:
		return len(c.Numbers)
	case ColumnBoolean:
		return len(c.Bools)
	default:
		return len(c.Strings)
	}
}

// Values converts the column to evaluator values. Dates become ISO text.
func (c ColumnValue) Values() []Value {
	values := make([]Value, c.Len())
	for i := range values {
		switch c.Type {
		case ColumnNumber:
			values[i] = Number(c.Numbers[i])
		case ColumnBoolean:
			values[i] = Boolean(c.Bools[i])
		default:
			values[i] = Text(c.Strings[i])
		}
	}
	return values
}

// columnFromValues types the results of a row formula. All-boolean results
// make a boolean column, all-text a text column (or a date column when
// every entry is an ISO date) and all-number a number column.
func columnFromValues(values []Value) (ColumnValue, error) {
	if len(values) == 0 {
		return NumberColumn(), nil
	}
	first := values[0].Type
	for i, v := range values {
		switch v.Type {
		case ValueNull, ValueArray:
			return ColumnValue{}, NewEvalError(ErrorKindTypeMismatch, "Row %d produced %s, expected a single value", i, describeResult(v))
		}
		if v.Type != first {
			return ColumnValue{}, NewEvalError(ErrorKindTypeMismatch, "Row %d produced %s but row 0 produced %s", i, v.Type, first)
		}
	}
	switch first {
	case ValueBoolean:
		bools := make([]bool, len(values))
		for i, v := range values {
			bools[i] = v.Bool
		}
		return BooleanColumn(bools...), nil
	case ValueText:
		strs := make([]string, len(values))
		dates := true
		for i, v := range values {
			strs[i] = v.Str
			if _, ok := parseISODate(v.Str); !ok {
				dates = false
			}
		}
		if dates {
			return DateColumn(strs...), nil
		}
		return TextColumn(strs...), nil
	default:
		nums := make([]float64, len(values))
		for i, v := range values {
			nums[i] = v.Num
		}
		return NumberColumn(nums...), nil
	}
}

func describeResult(v Value) string {
	if v.Type == ValueArray {
		return fmt.Sprintf("an array of %d values", len(v.Items))
	}
	return "no value"
}

// Column is a named column of a table.
type Column struct {
	Name   string
	Values ColumnValue
}

// Table is a set of equal-length columns plus row formulas. A row formula
// computes a column once per row; a row formula named like a data column
// recomputes it.
type Table struct {
	Name        string
	Columns     map[string]*Column
	RowFormulas map[string]string
}

// NewTable creates an empty table.
func NewTable(name string) *Table {
	return &Table{
		Name:        name,
		Columns:     make(map[string]*Column),
		RowFormulas: make(map[string]string),
	}
}

// AddColumn adds or replaces a data column.
func (t *Table) AddColumn(name string, values ColumnValue) *Table {
	t.Columns[name] = &Column{Name: name, Values: values}
	return t
}

// AddRowFormula adds or replaces a row formula.
func (t *Table) AddRowFormula(name, formula string) *Table {
	t.RowFormulas[name] = formula
	return t
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, error) {
	col, ok := t.Columns[name]
	if !ok {
		return nil, NewApplicationError(NotFound, fmt.Sprintf("Column %s.%s not found", t.Name, name))
	}
	return col, nil
}

// ColumnNames returns the data column names in sorted order.
func (t *Table) ColumnNames() []string {
	return sortedKeys(t.Columns)
}

// RowCount returns the number of rows of the longest data column. Nil
// columns count as empty.
func (t *Table) RowCount() int {
	rows := 0
	for _, col := range t.Columns {
		if col != nil {
			rows = max(rows, col.Values.Len())
		}
	}
	return rows
}

// checkRows reports the first pair of data columns whose lengths differ.
// Nil columns are skipped.
func (t *Table) checkRows() error {
	var names []string
	for _, name := range t.ColumnNames() {
		if t.Columns[name] != nil {
			names = append(names, name)
		}
	}
	for _, name := range names[min(1, len(names)):] {
		want, got := t.Columns[names[0]].Values.Len(), t.Columns[name].Values.Len()
		if got != want {
			return NewEvalError(ErrorKindDimensionMismatch,
				"Table %s: column %s has %d rows but %s has %d", t.Name, name, got, names[0], want)
		}
	}
	return nil
}

// isFormulaColumn reports whether name is computed by a row formula.
func (t *Table) isFormulaColumn(name string) bool {
	_, ok := t.RowFormulas[name]
	return ok
}

// hasColumn reports whether name is a data column or a row formula.
func (t *Table) hasColumn(name string) bool {
	_, ok := t.Columns[name]
	return ok || t.isFormulaColumn(name)
}

// allColumnNames lists data columns and row formulas, sorted.
func (t *Table) allColumnNames() []string {
	seen := make(map[string]struct{}, len(t.Columns)+len(t.RowFormulas))
	for name := range t.Columns {
		seen[name] = struct{}{}
	}
	for name := range t.RowFormulas {
		seen[name] = struct{}{}
	}
	return sortedKeys(seen)
}

// Scenario is a named set of variable overrides read through SCENARIO.
type Scenario struct {
	Name      string
	Overrides map[string]float64
}

// Model is the input and output of a calculation.
type Model struct {
	Scalars   map[string]*Variable
	Tables    map[string]*Table
	Scenarios map[string]*Scenario
}

// NewModel creates an empty model.
func NewModel() *Model {
	return &Model{
		Scalars:   make(map[string]*Variable),
		Tables:    make(map[string]*Table),
		Scenarios: make(map[string]*Scenario),
	}
}

// AddScalar adds or replaces a scalar, keyed by its name.
func (m *Model) AddScalar(v *Variable) *Model {
	m.Scalars[v.Name] = v
	return m
}

// AddTable adds or replaces a table, keyed by its name.
func (m *Model) AddTable(t *Table) *Model {
	m.Tables[t.Name] = t
	return m
}

// AddScenario adds or replaces a scenario.
func (m *Model) AddScenario(name string, overrides map[string]float64) *Model {
	m.Scenarios[name] = &Scenario{Name: name, Overrides: overrides}
	return m
}

// Scalar returns the named scalar.
func (m *Model) Scalar(name string) (*Variable, error) {
	v, ok := m.Scalars[name]
	if !ok {
		return nil, NewApplicationError(NotFound, fmt.Sprintf("Scalar %s not found%s", name, suggestion(name, sortedKeys(m.Scalars))))
	}
	return v, nil
}

// Table returns the named table.
func (m *Model) Table(name string) (*Table, error) {
	t, ok := m.Tables[name]
	if !ok {
		return nil, NewApplicationError(NotFound, fmt.Sprintf("Table %s not found%s", name, suggestion(name, sortedKeys(m.Tables))))
	}
	return t, nil
}

// Validate checks the structure of the model and returns every problem it
// finds. Problems are evaluation errors, so KindOf reports the kind of the
// first one.
func (m *Model) Validate() error {
	if m == nil {
		return NewApplicationError(InvalidArgument, "Model is nil")
	}
	var result *multierror.Error
	for _, key := range sortedKeys(m.Scalars) {
		v := m.Scalars[key]
		switch {
		case v == nil:
			result = multierror.Append(result, NewEvalError(ErrorKindInvalidArgument, "Scalar %s is nil", key))
		case v.Name != key:
			result = multierror.Append(result, NewEvalError(ErrorKindInvalidArgument, "Scalar %s is stored under key %s", v.Name, key))
		case v.Value == nil && !v.HasFormula():
			result = multierror.Append(result, NewEvalError(ErrorKindInvalidArgument, "Scalar %s has neither a value nor a formula", key))
		}
	}
	for _, key := range sortedKeys(m.Tables) {
		t := m.Tables[key]
		switch {
		case t == nil:
			result = multierror.Append(result, NewEvalError(ErrorKindInvalidArgument, "Table %s is nil", key))
			continue
		case t.Name != key:
			result = multierror.Append(result, NewEvalError(ErrorKindInvalidArgument, "Table %s is stored under key %s", t.Name, key))
		case len(t.Columns) == 0:
			result = multierror.Append(result, NewEvalError(ErrorKindInvalidArgument, "Table %s has no data columns", key))
			continue
		}
		broken := false
		for _, name := range t.ColumnNames() {
			if col := t.Columns[name]; col == nil || col.Name != name {
				result = multierror.Append(result, NewEvalError(ErrorKindInvalidArgument, "Table %s: column %s is missing or misnamed", key, name))
				broken = true
			}
		}
		if broken {
			continue
		}
		if err := t.checkRows(); err != nil {
			result = multierror.Append(result, err)
		} else if t.RowCount() == 0 {
			result = multierror.Append(result, NewEvalError(ErrorKindInvalidArgument, "Table %s has no rows", key))
		}
	}
	for _, key := range sortedKeys(m.Scenarios) {
		if s := m.Scenarios[key]; s == nil || s.Name != key {
			result = multierror.Append(result, NewEvalError(ErrorKindInvalidArgument, "Scenario %s is missing or misnamed", key))
		}
	}
	return result.ErrorOrNil()
}
