package calculator

import (
	"strings"
	"unicode"
)

// Preprocess normalizes a raw expression: it folds case to lower, removes the
// degree sign, and removes all whitespace. It never fails.
func Preprocess(src string) string {
	src = strings.ToLower(src)
	return strings.Map(func(r rune) rune {
		if r == '°' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, src)
}

// Allowed is the set of characters a normalized expression may contain. The
// letters are exactly those needed to spell the supported function and
// constant names.
const Allowed = "0123456789.," + Operators + "()" + "sincotaqrlgexpw"

// validate checks that every character of a normalized expression is in
// Allowed. If a run of letters containing an illegal character is called like
// a function, the error is a FuncError naming the run; otherwise it is a
// CharError.
func validate(src string) error {
	var bad []rune
	first := 0
	col := 0
	for _, r := range src {
		col++
		if strings.ContainsRune(Allowed, r) {
			continue
		}
		if first == 0 {
			first = col
		}
		if !containsRune(bad, r) {
			bad = append(bad, r)
		}
	}
	if bad == nil {
		return nil
	}
	if err := unsupportedCall(src); err != nil {
		return err
	}
	return &CharError{Col: first, Chars: string(bad)}
}

// unsupportedCall finds the first letter run that contains a character
// outside Allowed and is followed by an open parenthesis.
func unsupportedCall(src string) error {
	rs := []rune(src)
	for i := 0; i < len(rs); {
		if !unicode.IsLetter(rs[i]) {
			i++
			continue
		}
		j := i
		illegal := false
		for j < len(rs) && unicode.IsLetter(rs[j]) {
			if !strings.ContainsRune(Allowed, rs[j]) {
				illegal = true
			}
			j++
		}
		if illegal && j < len(rs) && rs[j] == '(' {
			return &FuncError{Col: i + 1, Name: string(rs[i:j])}
		}
		i = j
	}
	return nil
}

func containsRune(rs []rune, r rune) bool {
	for _, c := range rs {
		if c == r {
			return true
		}
	}
	return false
}
