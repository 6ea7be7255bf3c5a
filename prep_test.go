package calculator

import (
	"reflect"
	"strings"
	"testing"
)

func TestPreprocess(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"empty", "", ""},
		{"lower", "SIN(90)+PI", "sin(90)+pi"},
		{"spaces", " 2 +\t2\n", "2+2"},
		{"nbsp", "2 + 2", "2+2"},
		{"degree", "sin(90°)", "sin(90)"},
		{"degrees", "cos(60°)+sin(30°)", "cos(60)+sin(30)"},
		{"other", "2 $ 3", "2$3"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Preprocess(c.src); got != c.want {
				t.Errorf("Preprocess(%q): want %q, got %q", c.src, c.want, got)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		src  string
		err  error
	}{
		{"empty", "", nil},
		{"arith", "1+2-3*4/5^6!", nil},
		{"funcs", "sin(1)+cos(2)+tan(3)+sqrt(4)+log(5,6)+exp(7)+ln(8)+pow(9,0)", nil},
		{"consts", "e*pi", nil},
		{"sci", "1.5e-3", nil},
		// Unknown names made of allowed letters are left to the evaluator.
		{"allowed-name", "x+exp", nil},
		{"dollar", "2+2$", &CharError{Col: 4, Chars: "$"}},
		{"distinct", "$2#$", &CharError{Col: 1, Chars: "$#"}},
		{"space", "2 2", &CharError{Col: 2, Chars: " "}},
		{"upper", "SIN(1)", &FuncError{Col: 1, Name: "SIN"}},
		{"letter", "y+1", &CharError{Col: 1, Chars: "y"}},
		{"bare-name", "foo", &CharError{Col: 1, Chars: "f"}},
		{"brackets", "[1]", &CharError{Col: 1, Chars: "[]"}},
		{"func", "foo(1)", &FuncError{Col: 1, Name: "foo"}},
		{"func-later", "2+bar(3)", &FuncError{Col: 3, Name: "bar"}},
		{"func-suffix", "sinh(1)", &FuncError{Col: 1, Name: "sinh"}},
		{"func-max", "max(1,2)", &FuncError{Col: 1, Name: "max"}},
		{"func-notfirst", "y+abs(1)", &FuncError{Col: 3, Name: "abs"}},
		{"func-unicode", "ωx(1)", &FuncError{Col: 1, Name: "ωx"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := validate(c.src)
			if !reflect.DeepEqual(err, c.err) {
				t.Errorf("validate(%q): want %#v, got %#v", c.src, c.err, err)
			}
		})
	}
}

func TestAllowedSpellsNames(t *testing.T) {
	names := append(Degrees.Names(), "e", "pi")
	for _, name := range names {
		for _, r := range name {
			if !strings.ContainsRune(Allowed, r) {
				t.Errorf("%q contains %q, which is not allowed", name, r)
			}
		}
	}
}
