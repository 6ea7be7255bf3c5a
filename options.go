package calculator

import (
	"fmt"
	"log/slog"
	"strings"
)

// Option is an option for creating an Evaluator.
type Option interface {
	option(*Evaluator)
}

type (
	loggeropt struct{ l *slog.Logger }
	unitopt   Unit
	funcsopt  struct{ r *Registry }
)

// WithLogger sets the logger that receives internal failures. The default is
// slog.Default.
func WithLogger(l *slog.Logger) Option {
	return loggeropt{l}
}

func (o loggeropt) option(ev *Evaluator) {
	if o.l != nil {
		ev.logger = o.l
	}
}

// WithUnit selects the registry for an angle unit. It overrides any previous
// WithUnit or WithRegistry.
func WithUnit(u Unit) Option {
	return unitopt(u)
}

func (o unitopt) option(ev *Evaluator) {
	ev.funcs = Unit(o).Registry()
}

// WithRegistry sets the functions available to expressions. It overrides any
// previous WithUnit or WithRegistry.
func WithRegistry(r *Registry) Option {
	return funcsopt{r}
}

func (o funcsopt) option(ev *Evaluator) {
	if o.r == nil {
		panic("calculator: nil registry")
	}
	ev.funcs = o.r
}

// Unit is the angle unit for trigonometric functions.
type Unit string

const (
	// Deg is degrees, the default.
	Deg Unit = "deg"
	// Rad is radians.
	Rad Unit = "rad"
)

// ParseUnit parses an angle unit name. The empty string is Deg.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "deg", "degree", "degrees":
		return Deg, nil
	case "rad", "radian", "radians":
		return Rad, nil
	default:
		return "", fmt.Errorf("unknown angle unit %q", s)
	}
}

// Registry returns the default registry for the unit. Unknown units use Deg.
func (u Unit) Registry() *Registry {
	if u == Rad {
		return Radians
	}
	return Degrees
}
