package calculator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strconv"
)

// Digits is the number of decimal places results are rounded to.
const Digits = 8

// Evaluator evaluates expressions against an immutable function registry. It
// holds no mutable state, so it is safe to use concurrently.
type Evaluator struct {
	funcs  *Registry
	logger *slog.Logger
}

// New creates an evaluator. Without options, it uses Degrees and
// slog.Default.
func New(opts ...Option) *Evaluator {
	ev := Evaluator{funcs: Degrees, logger: slog.Default()}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.option(&ev)
	}
	return &ev
}

// Registry returns the functions the evaluator uses.
func (ev *Evaluator) Registry() *Registry {
	return ev.funcs
}

// Evaluate normalizes, validates, parses, and evaluates src. The result
// carries id whether evaluation succeeds or fails. Evaluate never panics; any
// failure that is not a problem with the input is reported as InternalError.
func (ev *Evaluator) Evaluate(id, src string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{ID: id, Err: ev.classify(id, src, fmt.Errorf("panic: %v", r))}
		}
	}()
	a, err := Parse(Preprocess(src))
	if err != nil {
		return Result{ID: id, Err: ev.classify(id, src, err)}
	}
	v, err := ev.Eval(a)
	if err != nil {
		return Result{ID: id, Err: ev.classify(id, src, err)}
	}
	return Result{ID: id, Value: v}
}

// Eval evaluates a parsed expression and rounds the result to Digits places.
// Every call and name in the expression is resolved before anything is
// evaluated, so an unsupported function or wrong number of arguments is
// reported even if evaluating an earlier term would fail.
func (ev *Evaluator) Eval(e *Expr) (float64, error) {
	if err := ev.check(e.n); err != nil {
		return 0, err
	}
	v, err := ev.eval(e.n)
	if err != nil {
		return 0, err
	}
	return Round(v), nil
}

// classify converts err to an *Error and logs it.
func (ev *Evaluator) classify(id, src string, err error) *Error {
	r := Classify(id, err)
	if r.Kind == InternalError {
		ev.logger.Error("expression evaluation failed", "id", id, "expression", src, "error", err)
	} else {
		ev.logger.LogAttrs(context.Background(), slog.LevelDebug, "expression rejected",
			slog.String("id", id),
			slog.String("kind", string(r.Kind)),
			slog.String("error", err.Error()),
		)
	}
	return r
}

// check resolves every call and name in the tree in order.
func (ev *Evaluator) check(n *node) error {
	if n == nil {
		return nil
	}
	switch n.kind {
	case nodeCall:
		fn, ok := ev.funcs.Lookup(n.name)
		if !ok {
			return &FuncError{Col: n.pos, Name: n.name}
		}
		if k := n.args(); !fn.CanCall(k) {
			min, max := fn.Arity()
			return &CallError{Col: n.pos, Func: fn.Name(), Len: k, Min: min, Max: max}
		}
	case nodeName:
		if _, ok := Constant(n.name); !ok {
			return &NameError{Name: n.name, Col: n.pos}
		}
	}
	if err := ev.check(n.left); err != nil {
		return err
	}
	return ev.check(n.right)
}

// eval reduces the node to its value.
func (ev *Evaluator) eval(n *node) (float64, error) {
	switch n.kind {
	case nodeNum:
		return n.val, nil
	case nodeName:
		v, ok := Constant(n.name)
		if !ok {
			return 0, &NameError{Name: n.name, Col: n.pos}
		}
		return v, nil
	case nodeCall:
		fn, ok := ev.funcs.Lookup(n.name)
		if !ok {
			return 0, &FuncError{Col: n.pos, Name: n.name}
		}
		args := make([]float64, 0, n.args())
		for l := n.right; l != nil; l = l.right {
			v, err := ev.eval(l.left)
			if err != nil {
				return 0, err
			}
			args = append(args, v)
		}
		if !fn.CanCall(len(args)) {
			min, max := fn.Arity()
			return 0, &CallError{Col: n.pos, Func: fn.Name(), Len: len(args), Min: min, Max: max}
		}
		r, err := fn.Call(args)
		if err != nil {
			return 0, err
		}
		return finite(r, fn.Name())
	case nodeArg:
		panic("calculator: eval on nodeArg")
	case nodeNeg:
		v, err := ev.eval(n.left)
		return -v, err
	case nodeNop:
		return ev.eval(n.left)
	case nodeFact:
		v, err := ev.eval(n.left)
		if err != nil {
			return 0, err
		}
		r, err := factorial(v)
		if err != nil {
			return 0, err
		}
		return finite(r, "factorial")
	case nodeAdd, nodeSub, nodeMul, nodeDiv, nodePow:
		l, err := ev.eval(n.left)
		if err != nil {
			return 0, err
		}
		r, err := ev.eval(n.right)
		if err != nil {
			return 0, err
		}
		var v float64
		switch n.kind {
		case nodeAdd:
			v = l + r
		case nodeSub:
			v = l - r
		case nodeMul:
			v = l * r
		case nodeDiv:
			if r == 0 {
				return 0, &DomainError{X: r, Arg: 2, Func: "/", Reason: "division by zero"}
			}
			v = l / r
		case nodePow:
			v = math.Pow(l, r)
		}
		return finite(v, n.kind.op())
	default:
		panic("calculator: invalid AST node " + n.kind.String())
	}
}

// finite checks that the result of an operation is a finite number.
func finite(v float64, op string) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &DomainError{X: v, Func: op}
	}
	return v, nil
}

var (
	roundScale    = big.NewRat(int64(math.Pow10(Digits)), 1)
	roundScaleInt = big.NewInt(int64(math.Pow10(Digits)))
	bigOne        = big.NewInt(1)
)

// Round rounds x to Digits decimal places, rounding halves away from zero.
// Rounding applies to the shortest decimal representation of x, so values
// like 1.000000005 round up as written rather than as stored. Non-finite
// values and values too large to have digits beyond Digits are returned
// unchanged. Round never returns negative zero.
func Round(x float64) float64 {
	if x == 0 {
		return 0
	}
	if math.IsNaN(x) || math.IsInf(x, 0) || math.Abs(x) >= 1e15 {
		return x
	}
	q, ok := new(big.Rat).SetString(strconv.FormatFloat(x, 'e', -1, 64))
	if !ok {
		panic("calculator: cannot parse formatted float " + strconv.FormatFloat(x, 'e', -1, 64))
	}
	q.Mul(q, roundScale)
	num := new(big.Int).Abs(q.Num())
	quo, rem := new(big.Int).QuoRem(num, q.Denom(), new(big.Int))
	if rem.Lsh(rem, 1).Cmp(q.Denom()) >= 0 {
		quo.Add(quo, bigOne)
	}
	if x < 0 {
		quo.Neg(quo)
	}
	r, _ := new(big.Rat).SetFrac(quo, roundScaleInt).Float64()
	if r == 0 {
		return 0
	}
	return r
}

// NameError is an error from a lookup for a name that is not a constant. The
// calculator has no variables. It implements InputError.
type NameError struct {
	// Name is the unresolved name.
	Name string
	// Col is the position of the name.
	Col int
}

func (err *NameError) Error() string {
	return errpos(err.Col, "unknown symbol "+strconv.Quote(err.Name))
}

func (err *NameError) Pos() int {
	return err.Col
}
