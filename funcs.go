package calculator

import (
	"math"
	"strconv"
	"strings"
)

// Func describes a function callable from expressions: its name, the number
// of arguments it accepts, and its evaluation rule. A Func is immutable once
// created.
type Func struct {
	name     string
	min, max int
	f        func(args []float64) (float64, error)
}

// NewFunc creates a function descriptor accepting between min and max
// arguments. If max is less than min, the function accepts exactly min
// arguments. f receives a slice with a length for which CanCall returns true
// and may return a *DomainError for arguments outside its domain. Panics if
// name is empty or min is negative.
func NewFunc(name string, min, max int, f func(args []float64) (float64, error)) *Func {
	if name == "" || min < 0 || f == nil {
		panic("calculator: invalid function descriptor " + strconv.Quote(name))
	}
	if max < min {
		max = min
	}
	return &Func{name: strings.ToLower(name), min: min, max: max, f: f}
}

// Monadic wraps a function of one variable into a Func.
func Monadic(name string, f func(x float64) (float64, error)) *Func {
	return NewFunc(name, 1, 1, func(args []float64) (float64, error) {
		return f(args[0])
	})
}

// Dyadic wraps a function of two variables into a Func.
func Dyadic(name string, f func(x, y float64) (float64, error)) *Func {
	return NewFunc(name, 2, 2, func(args []float64) (float64, error) {
		return f(args[0], args[1])
	})
}

// Name returns the lowercase name of the function.
func (fn *Func) Name() string {
	return fn.name
}

// Arity returns the minimum and maximum number of arguments.
func (fn *Func) Arity() (min, max int) {
	return fn.min, fn.max
}

// CanCall returns whether the function can be called with n arguments.
func (fn *Func) CanCall(n int) bool {
	return fn.min <= n && n <= fn.max
}

// Call evaluates the function. Panics if the number of arguments is not one
// for which CanCall returns true.
func (fn *Func) Call(args []float64) (float64, error) {
	if !fn.CanCall(len(args)) {
		panic("calculator: " + fn.name + " called with " + strconv.Itoa(len(args)) + " arguments")
	}
	return fn.f(args)
}

// Registry is an immutable set of functions keyed by case-insensitive name.
// It is safe for concurrent use.
type Registry struct {
	funcs map[string]*Func
}

// NewRegistry creates a registry holding fns. Later functions replace earlier
// ones with the same name.
func NewRegistry(fns ...*Func) *Registry {
	r := Registry{funcs: make(map[string]*Func, len(fns))}
	for _, fn := range fns {
		r.funcs[fn.name] = fn
	}
	return &r
}

// Lookup finds a function by name, ignoring case.
func (r *Registry) Lookup(name string) (*Func, bool) {
	fn, ok := r.funcs[strings.ToLower(name)]
	return fn, ok
}

// Names returns the sorted names of the functions in the registry.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for k := range r.funcs {
		names = append(names, k)
	}
	sortstrs(names)
	return names
}

// sortstrs sorts a string slice without using package sort because that has
// reflection and allocation problems.
func sortstrs(names []string) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
}

// Degrees is the default registry. Trigonometric functions interpret their
// arguments in degrees.
var Degrees = NewRegistry(append(trig(math.Pi/180), common()...)...)

// Radians is the same as Degrees except that trigonometric functions
// interpret their arguments in radians.
var Radians = NewRegistry(append(trig(1), common()...)...)

// trig creates sin, cos, and tan with their arguments multiplied by scale.
func trig(scale float64) []*Func {
	return []*Func{
		Monadic("sin", func(x float64) (float64, error) { return math.Sin(x * scale), nil }),
		Monadic("cos", func(x float64) (float64, error) { return math.Cos(x * scale), nil }),
		Monadic("tan", func(x float64) (float64, error) { return math.Tan(x * scale), nil }),
	}
}

func common() []*Func {
	return []*Func{
		Monadic("sqrt", func(x float64) (float64, error) {
			if x < 0 {
				return 0, &DomainError{X: x, Arg: 1, Func: "sqrt", Reason: "must not be negative"}
			}
			return math.Sqrt(x), nil
		}),
		Monadic("exp", func(x float64) (float64, error) { return math.Exp(x), nil }),
		Monadic("ln", func(x float64) (float64, error) {
			if x <= 0 {
				return 0, &DomainError{X: x, Arg: 1, Func: "ln", Reason: "must be positive"}
			}
			return math.Log(x), nil
		}),
		NewFunc("log", 1, 2, logb),
		Dyadic("pow", func(x, y float64) (float64, error) { return math.Pow(x, y), nil }),
	}
}

// logb is the base 10 logarithm of its argument, or with two arguments, the
// logarithm of the first in the base of the second.
func logb(args []float64) (float64, error) {
	for i, x := range args {
		if x <= 0 {
			return 0, &DomainError{X: x, Arg: i + 1, Func: "log", Reason: "must be positive"}
		}
	}
	if len(args) == 1 {
		return math.Log10(args[0]), nil
	}
	return math.Log(args[0]) / math.Log(args[1]), nil
}

// factorial is the factorial of a non-negative integer. Results beyond 170!
// are infinite.
func factorial(x float64) (float64, error) {
	if x < 0 || x != math.Trunc(x) || math.IsInf(x, 0) {
		return 0, &DomainError{X: x, Arg: 1, Func: "factorial", Reason: "must be a non-negative integer"}
	}
	if x > 170 {
		return math.Inf(1), nil
	}
	r := 1.0
	for i := 2.0; i <= x; i++ {
		r *= i
	}
	return r, nil
}

// Constant resolves a bare identifier, ignoring case. The only constants are
// e and pi.
func Constant(name string) (float64, bool) {
	switch strings.ToLower(name) {
	case "e":
		return math.E, true
	case "pi":
		return math.Pi, true
	default:
		return 0, false
	}
}

// DomainError is an error returned when a function or operator is called on
// arguments outside its domain, or produces a result that is not finite.
type DomainError struct {
	// X is the out-of-domain argument.
	X float64
	// Arg is the 1-based index of the argument, or 0 if the error is not
	// attributed to a single argument.
	Arg int
	// Func is a name identifying the function or operator.
	Func string
	// Reason optionally describes the domain.
	Reason string
}

func (err *DomainError) Error() string {
	if err.Arg == 0 {
		r := "result of " + err.Func + " is not finite"
		if err.Reason != "" {
			r += ": " + err.Reason
		}
		return r
	}
	r := strconv.FormatFloat(err.X, 'g', -1, 64) + " outside domain of " + err.Func + " (argument " + strconv.Itoa(err.Arg) + ")"
	if err.Reason != "" {
		r += ": " + err.Reason
	}
	return r
}
