package calculator

import (
	"strconv"
	"strings"
)

// OperatorError is an error indicating an operator token that is not
// understood by the parser. It implements InputError.
type OperatorError struct {
	// Col is the position of the operator.
	Col int
	// Operator is the token that was not understood.
	Operator string
	// Unary is whether the parser expected a unary operator at the time.
	Unary bool
}

func (err *OperatorError) Error() string {
	s := "binary"
	if err.Unary {
		s = "unary"
	}
	return errpos(err.Col, "unexpected "+s+" operator "+strconv.Quote(err.Operator))
}

func (err *OperatorError) Pos() int {
	return err.Col
}

// BracketError is an error indicating unbalanced parentheses in the input.
// It implements InputError.
type BracketError struct {
	// Col is the position of the offending bracket or end of input.
	Col int
	// Left is the opening bracket.
	Left string
	// Right is the closing bracket.
	Right string
}

func (err *BracketError) Error() string {
	if err.Left == "" {
		return errpos(err.Col, "close bracket "+err.Right+" with no open bracket")
	}
	return errpos(err.Col, "open bracket "+err.Left+" with no close bracket")
}

func (err *BracketError) Pos() int {
	return err.Col
}

// SeparatorError is an error indicating an illegal use of a comma separator.
// It implements InputError.
type SeparatorError struct {
	// Col is the position of the separator.
	Col int
	// Sep is the separator.
	Sep string
}

func (err *SeparatorError) Error() string {
	return errpos(err.Col, "invalid occurrence of separator "+strconv.Quote(err.Sep))
}

func (err *SeparatorError) Pos() int {
	return err.Col
}

// TermError is an error indicating two terms with no operator between them,
// e.g. "2pi" or "(1)(2)". It implements InputError.
type TermError struct {
	// Col is the position of the second term.
	Col int
	// Text is the token that starts the second term.
	Text string
}

func (err *TermError) Error() string {
	return errpos(err.Col, "missing operator before "+strconv.Quote(err.Text))
}

func (err *TermError) Pos() int {
	return err.Col
}

// EmptyExpressionError is an error indicating an empty subexpression.
type EmptyExpressionError struct {
	// Col is the position of the token that ended the subexpression.
	Col int
	// End is the token that ended the subexpression.
	End string
}

func (err *EmptyExpressionError) Error() string {
	if err.End == "" {
		if err.Col <= 1 {
			return errpos(err.Col, "no expression")
		}
		return errpos(err.Col, "no expression at end")
	}
	return errpos(err.Col, "no expression up to "+strconv.Quote(err.End))
}

func (err *EmptyExpressionError) Pos() int {
	return err.Col
}

// CharError is an error indicating characters outside the accepted set. It
// implements InputError.
type CharError struct {
	// Col is the position of the first illegal character.
	Col int
	// Chars contains each distinct illegal character in order of appearance.
	Chars string
}

func (err *CharError) Error() string {
	return errpos(err.Col, "illegal characters "+strconv.Quote(err.Chars))
}

func (err *CharError) Pos() int {
	return err.Col
}

// FuncError is an error indicating a call to a function that is not in the
// registry. It implements InputError.
type FuncError struct {
	// Col is the position of the function name.
	Col int
	// Name is the unsupported function name.
	Name string
}

func (err *FuncError) Error() string {
	return errpos(err.Col, "unsupported function "+strconv.Quote(err.Name))
}

func (err *FuncError) Pos() int {
	return err.Col
}

// CallError is an error indicating a function call with the wrong number of
// arguments. It implements InputError.
type CallError struct {
	// Col is the position of the function name.
	Col int
	// Func is the function name that was called.
	Func string
	// Len is the number of arguments in the call.
	Len int
	// Min and Max are the arity bounds of the function.
	Min, Max int
}

func (err *CallError) Error() string {
	return errpos(err.Col, err.Requirement()+", got "+strconv.Itoa(err.Len))
}

// Requirement describes the arity of the function, e.g. "function pow
// requires 2 arguments".
func (err *CallError) Requirement() string {
	var b strings.Builder
	b.WriteString("function ")
	b.WriteString(err.Func)
	b.WriteString(" requires ")
	b.WriteString(strconv.Itoa(err.Min))
	if err.Max > err.Min {
		b.WriteString(" to ")
		b.WriteString(strconv.Itoa(err.Max))
	}
	if err.Min == 1 && err.Max <= err.Min {
		b.WriteString(" argument")
	} else {
		b.WriteString(" arguments")
	}
	return b.String()
}

func (err *CallError) Pos() int {
	return err.Col
}

// errpos is a shortcut to create an error message with a position.
func errpos(pos int, msg string) string {
	return strconv.Itoa(pos) + ": " + msg
}

// InputError is an error with position information. Every error resulting from
// invalid input implements InputError.
type InputError interface {
	error
	// Pos returns the position of the error as the number of runes up to and
	// including the start of the token that caused the error.
	Pos() int
}

var (
	_ InputError = (*OperatorError)(nil)
	_ InputError = (*BracketError)(nil)
	_ InputError = (*SeparatorError)(nil)
	_ InputError = (*TermError)(nil)
	_ InputError = (*CallError)(nil)
	_ InputError = (*EmptyExpressionError)(nil)
	_ InputError = (*LexError)(nil)
	_ InputError = (*CharError)(nil)
	_ InputError = (*FuncError)(nil)
	_ InputError = (*NameError)(nil)
)
