// Package calculator evaluates arithmetic and scientific expressions in
// double precision.
//
// The syntax is what you'd type into a pocket calculator. "sin(90)+sqrt(4)"
// is 3, because trigonometric functions take degrees unless the evaluator is
// created with WithUnit(Rad). "-2^2" is the same as "-(2^2)", and "a^b^c" is
// "a^(b^c)". "5!" and "!5" are both factorials. There is no implicit
// multiplication; "2pi" is an error, but "2*pi" is not.
//
// Evaluation either produces a result rounded to Digits decimal places or an
// *Error in exactly one of four categories. ValidationError is for input
// containing characters outside Allowed or calling a function that does not
// exist. MathError is for a function called with the wrong number of
// arguments, or for an argument or result outside a function's domain.
// SyntaxError is for everything the parser rejects, including names other
// than the constants e and pi. Anything else is InternalError.
//
// Evaluators and parsed expressions are immutable, so any number of
// goroutines may use them at once.
package calculator
