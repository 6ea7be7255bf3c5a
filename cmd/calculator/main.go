package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/zephyrtronium/calculator"
)

func main() {
	log.SetFlags(0)
	var (
		inname, verb string
		nl, echo     bool
		rad, asjson  bool
	)
	flag.StringVar(&inname, "in", "", "input file (default stdin if no args given)")
	flag.StringVar(&verb, "fmt", "%g", "result formatting string")
	flag.BoolVar(&nl, "n", false, "evaluate separate input lines as separate expressions")
	flag.BoolVar(&rad, "rad", false, "trigonometric functions take radians instead of degrees")
	flag.BoolVar(&asjson, "json", false, "print results as JSON objects")
	flag.BoolVar(&echo, "echo", false, "print parse trees")
	flag.Parse()

	srcs, err := inputs(inname, flag.NArg() == 0, nl)
	if err != nil {
		log.Fatal(err)
	}
	srcs = append(srcs, flag.Args()...)

	unit := calculator.Deg
	if rad {
		unit = calculator.Rad
	}
	ev := calculator.New(calculator.WithUnit(unit))

	verb += "\n"
	enc := json.NewEncoder(os.Stdout)
	for i, src := range srcs {
		if echo {
			if a, err := calculator.Parse(calculator.Preprocess(src)); err == nil {
				fmt.Printf("%v : ", a)
			}
		}
		r := ev.Evaluate(strconv.Itoa(i+1), src)
		switch {
		case asjson:
			if err := enc.Encode(r); err != nil {
				log.Fatal(err)
			}
		case !r.OK():
			fmt.Println(r.Err)
		default:
			fmt.Printf(verb, r.Value)
		}
	}
}

// inputs reads expressions from the named file, or from stdin if the name is
// "-" or std is true. If nl is true, each non-blank line is an expression;
// otherwise the whole input is one.
func inputs(inname string, std, nl bool) ([]string, error) {
	var f *os.File
	switch {
	case inname != "" && inname != "-":
		in, err := os.Open(inname)
		if err != nil {
			return nil, err
		}
		defer in.Close()
		f = in
	case inname == "-", std:
		f = os.Stdin
	}
	if f == nil {
		return nil, nil
	}
	if !nl {
		b, err := io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(string(b)) == "" {
			return nil, nil
		}
		return []string{string(b)}, nil
	}
	var srcs []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		if strings.TrimSpace(s.Text()) == "" {
			continue
		}
		srcs = append(srcs, s.Text())
	}
	return srcs, s.Err()
}
