package calc

import (
	"math"
	"strconv"
	"strings"
)

// ValueType identifies which variant a Value holds.
type ValueType uint8

const (
	ValueNull    ValueType = iota // empty value, also what NA() produces
	ValueNumber                   // float64
	ValueText                     // string
	ValueBoolean                  // TRUE/FALSE
	ValueArray                    // ordered sequence, only during evaluation
)

var valueTypeNames = map[ValueType]string{
	ValueNull:    "null",
	ValueNumber:  "number",
	ValueText:    "text",
	ValueBoolean: "boolean",
	ValueArray:   "array",
}

func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Value is the runtime value produced by evaluating a formula. Only the
// field matching Type is meaningful.
type Value struct {
	Type  ValueType
	Num   float64
	Str   string
	Bool  bool
	Items []Value
}

// Null is the empty value.
var Null = Value{}

func Number(n float64) Value {
	return Value{Type: ValueNumber, Num: n}
}

func Text(s string) Value {
	return Value{Type: ValueText, Str: s}
}

func Boolean(b bool) Value {
	return Value{Type: ValueBoolean, Bool: b}
}

func Array(items []Value) Value {
	return Value{Type: ValueArray, Items: items}
}

// NumberArray wraps a slice of floats as an array value.
func NumberArray(nums []float64) Value {
	items := make([]Value, len(nums))
	for i, n := range nums {
		items[i] = Number(n)
	}
	return Array(items)
}

func (v Value) IsNull() bool  { return v.Type == ValueNull }
func (v Value) IsArray() bool { return v.Type == ValueArray }

// AsNumber converts the value to a float64. Text is parsed as a number
// first and then as an ISO date (YYYY-MM-DD), which yields its serial
// day number. Booleans are 1 and 0. Arrays and null do not convert.
func (v Value) AsNumber() (float64, bool) {
	switch v.Type {
	case ValueNumber:
		return v.Num, true
	case ValueBoolean:
		if v.Bool {
			return 1, true
		}
		return 0, true
	case ValueText:
		if n, err := strconv.ParseFloat(v.Str, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			return n, true
		}
		if t, ok := parseISODate(v.Str); ok {
			return dateToSerial(t), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// AsText converts the value to its textual form. Whole numbers print
// without a decimal point.
func (v Value) AsText() string {
	switch v.Type {
	case ValueNumber:
		return formatNumber(v.Num)
	case ValueText:
		return v.Str
	case ValueBoolean:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case ValueArray:
		parts := make([]string, len(v.Items))
		for i, item := range v.Items {
			parts[i] = item.AsText()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return ""
	}
}

// AsBool converts the value to a boolean. Text accepts TRUE/FALSE and 1/0
// in any case.
func (v Value) AsBool() (bool, bool) {
	switch v.Type {
	case ValueBoolean:
		return v.Bool, true
	case ValueNumber:
		return v.Num != 0, true
	case ValueText:
		switch strings.ToUpper(v.Str) {
		case "TRUE", "1":
			return true, true
		case "FALSE", "0":
			return false, true
		}
	}
	return false, false
}

// IsTruthy reports whether the value counts as true in a condition.
func (v Value) IsTruthy() bool {
	b, ok := v.AsBool()
	return ok && b
}

// Values returns the items of an array, or the value itself as a
// single-element slice.
func (v Value) Values() []Value {
	if v.Type == ValueArray {
		return v.Items
	}
	return []Value{v}
}

func (v Value) String() string {
	return v.AsText()
}

// ValuesEqual compares two values. Text compares case-sensitively and
// numbers compare exactly. Values of different types are never equal,
// except that a single-element array equals its element.
func ValuesEqual(left, right Value) bool {
	if left.Type == ValueArray && right.Type != ValueArray && len(left.Items) == 1 {
		return ValuesEqual(left.Items[0], right)
	}
	if right.Type == ValueArray && left.Type != ValueArray && len(right.Items) == 1 {
		return ValuesEqual(left, right.Items[0])
	}
	if left.Type != right.Type {
		return false
	}
	switch left.Type {
	case ValueNull:
		return true
	case ValueNumber:
		return left.Num == right.Num
	case ValueText:
		return left.Str == right.Str
	case ValueBoolean:
		return left.Bool == right.Bool
	case ValueArray:
		if len(left.Items) != len(right.Items) {
			return false
		}
		for i := range left.Items {
			if !ValuesEqual(left.Items[i], right.Items[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func formatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}
