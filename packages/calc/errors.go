package calc

import (
	"errors"
	"fmt"
)

// ErrorKind classifies formula evaluation failures.
type ErrorKind uint8

const (
	ErrorKindParse              ErrorKind = 1  // malformed formula text
	ErrorKindUnknownReference   ErrorKind = 2  // variable, column, table or function not found
	ErrorKindCircularDependency ErrorKind = 3  // dependency cycle between scalars, tables or columns
	ErrorKindDimensionMismatch  ErrorKind = 4  // row counts disagree
	ErrorKindDivisionByZero     ErrorKind = 5  // x/0
	ErrorKindTypeMismatch       ErrorKind = 6  // operand of the wrong type
	ErrorKindDomain             ErrorKind = 7  // SQRT(-1), LN(0), MOD(x,0)
	ErrorKindIndex              ErrorKind = 8  // 1-based or 0-based bounds violated
	ErrorKindLookupNotFound     ErrorKind = 9  // MATCH/XLOOKUP without a match
	ErrorKindAggregationContext ErrorKind = 10 // aggregation used as a row formula
	ErrorKindInvalidArgument    ErrorKind = 11 // arity, mode codes, bad parameters
)

// ErrorKindNames maps error kinds to their names.
var ErrorKindNames = map[ErrorKind]string{
	ErrorKindParse:              "ParseError",
	ErrorKindUnknownReference:   "UnknownReference",
	ErrorKindCircularDependency: "CircularDependency",
	ErrorKindDimensionMismatch:  "DimensionMismatch",
	ErrorKindDivisionByZero:     "DivisionByZero",
	ErrorKindTypeMismatch:       "TypeMismatch",
	ErrorKindDomain:             "DomainError",
	ErrorKindIndex:              "IndexError",
	ErrorKindLookupNotFound:     "LookupNotFound",
	ErrorKindAggregationContext: "AggregationContextError",
	ErrorKindInvalidArgument:    "InvalidArgument",
}

func (k ErrorKind) String() string {
	if name, ok := ErrorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// EvalError is the error returned by every stage of the kernel, from
// parsing to evaluation.
type EvalError struct {
	Kind    ErrorKind
	Message string
}

func (e *EvalError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String()
}

// NewEvalError creates an error of the given kind with a formatted message.
func NewEvalError(kind ErrorKind, format string, args ...any) *EvalError {
	message := format
	if len(args) > 0 {
		message = fmt.Sprintf(format, args...)
	}
	return &EvalError{
		Kind:    kind,
		Message: message,
	}
}

// KindOf returns the kind of the first EvalError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var evalErr *EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries an EvalError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// AppErrorCode represents gRPC-style error codes for api misuse, as opposed
// to formula errors.
type AppErrorCode int

const (
	// InvalidArgument indicates the caller passed an invalid argument.
	InvalidArgument AppErrorCode = 3

	// NotFound means a requested scalar, table or column does not exist.
	NotFound AppErrorCode = 5

	// FailedPrecondition means the model is not in the state required,
	// e.g. reading the value of a scalar that was never calculated.
	FailedPrecondition AppErrorCode = 9
)

// AppError represents errors at the api level
type AppError struct {
	Code    AppErrorCode
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}
