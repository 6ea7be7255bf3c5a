package calculator

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Kind is the category of an evaluation error reported to callers.
type Kind string

const (
	// ValidationError means the input violates a precondition checked before
	// evaluation: an illegal character or an unsupported function name.
	ValidationError Kind = "VALIDATION_ERROR"
	// MathError means a function was called with the wrong number of
	// arguments, or an argument or result was outside the domain of a
	// function or operator.
	MathError Kind = "MATH_ERROR"
	// SyntaxError means the expression could not be parsed, or it names a
	// symbol that is neither a constant nor a function call.
	SyntaxError Kind = "SYNTAX_ERROR"
	// InternalError is any other failure.
	InternalError Kind = "INTERNAL_ERROR"
)

// Error is an evaluation failure as reported to callers.
type Error struct {
	// ID is the correlation identifier of the request.
	ID string
	// Kind is the error category.
	Kind Kind
	// Message is a human-readable description. For InternalError it is
	// always generic.
	Message string
	// Function names the function or operator for MathError.
	Function string
	// Details holds category-specific facts, e.g. the unsupported function
	// name for ValidationError.
	Details map[string]any

	cause error
}

func (err *Error) Error() string {
	return string(err.Kind) + ": " + err.Message
}

// Unwrap returns the internal cause. The cause is for logging only and is
// never included in marshaled results.
func (err *Error) Unwrap() error {
	return err.cause
}

const (
	msgIllegalChars = "expression contains illegal characters"
	msgSyntax       = "expression syntax error"
	msgInternal     = "internal error"
)

// Classify converts any failure from preprocessing, validation, parsing, or
// evaluation into exactly one error category, attaching id. A nil err gives
// nil. An err that is already an *Error is copied with id attached.
func Classify(id string, err error) *Error {
	if err == nil {
		return nil
	}
	var (
		done *Error
		ce   *CharError
		fe   *FuncError
		call *CallError
		de   *DomainError
		ie   InputError
	)
	switch {
	case errors.As(err, &done):
		r := *done
		r.ID = id
		return &r
	case errors.As(err, &ce):
		return &Error{
			ID:      id,
			Kind:    ValidationError,
			Message: msgIllegalChars,
			Details: map[string]any{"illegalCharacters": ce.Chars, "position": ce.Col},
			cause:   err,
		}
	case errors.As(err, &fe):
		return &Error{
			ID:      id,
			Kind:    ValidationError,
			Message: "unsupported function " + fe.Name,
			Details: map[string]any{"invalidFunction": fe.Name},
			cause:   err,
		}
	case errors.As(err, &call):
		return &Error{
			ID:       id,
			Kind:     MathError,
			Message:  call.Requirement(),
			Function: call.Func,
			cause:    err,
		}
	case errors.As(err, &de):
		return &Error{
			ID:       id,
			Kind:     MathError,
			Message:  de.Error(),
			Function: de.Func,
			cause:    err,
		}
	case errors.As(err, &ie):
		return &Error{
			ID:      id,
			Kind:    SyntaxError,
			Message: msgSyntax,
			Details: map[string]any{"position": ie.Pos(), "reason": reason(ie)},
			cause:   err,
		}
	default:
		return &Error{ID: id, Kind: InternalError, Message: msgInternal, cause: err}
	}
}

// reason strips the position prefix from an input error message.
func reason(err InputError) string {
	return strings.TrimPrefix(err.Error(), strconv.Itoa(err.Pos())+": ")
}

// Result is the outcome of evaluating one expression.
type Result struct {
	// ID is the caller's correlation identifier, passed through unchanged.
	ID string
	// Value is the result rounded to Digits places. It is zero if Err is
	// non-nil.
	Value float64
	// Err is the failure, if any.
	Err *Error
}

// OK returns whether the evaluation succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

type (
	successJSON struct {
		ID     string  `json:"id"`
		Result float64 `json:"result"`
	}
	errorJSON struct {
		ID               string         `json:"id"`
		ErrorType        Kind           `json:"errorType"`
		Message          string         `json:"message"`
		Details          map[string]any `json:"details,omitempty"`
		AffectedFunction string         `json:"affectedFunction,omitempty"`
	}
)

// MarshalJSON encodes a success as {"id", "result"} and a failure as {"id",
// "errorType", "message"} plus "details" or "affectedFunction" when present.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Err == nil {
		return json.Marshal(successJSON{ID: r.ID, Result: r.Value})
	}
	return json.Marshal(errorJSON{
		ID:               r.ID,
		ErrorType:        r.Err.Kind,
		Message:          r.Err.Message,
		Details:          r.Err.Details,
		AffectedFunction: r.Err.Function,
	})
}

// UnmarshalJSON decodes the encoding produced by MarshalJSON. The internal
// cause of an error is not recoverable.
func (r *Result) UnmarshalJSON(b []byte) error {
	var v struct {
		errorJSON
		Result *float64 `json:"result"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = Result{ID: v.ID}
	if v.ErrorType == "" {
		if v.Result != nil {
			r.Value = *v.Result
		}
		return nil
	}
	r.Err = &Error{
		ID:       v.ID,
		Kind:     v.ErrorType,
		Message:  v.Message,
		Function: v.AffectedFunction,
		Details:  v.Details,
	}
	return nil
}
