package calculator

// Expr = num | name | Call | Neg | Plus | Fact | Add | Sub | Mul | Div | Pow | '(' Expr ')'
// Call = funcname '(' [ Expr { ',' Expr } ] ')'
// Neg = '-' Expr
// Plus = '+' Expr
// Fact = '!' Expr | Expr '!'
// Add = Expr '+' Expr
// Sub = Expr '-' Expr
// Mul = Expr '*' Expr
// Div = Expr '/' Expr
// Pow = Expr '^' Expr

// Expr is a parsed expression. Function calls and names in it are not yet
// resolved; an Evaluator binds them against its registry.
type Expr struct {
	// n is the root node of the expression.
	n *node
}

// Parse parses a normalized expression. Every character of src must be in
// Allowed; the check runs before any parsing. Callers usually pass the result
// of Preprocess.
func Parse(src string) (*Expr, error) {
	if err := validate(src); err != nil {
		return nil, err
	}
	scan := lex(src)
	n, err := parseterm(scan, exprprec)
	if err != nil {
		return nil, err
	}
	tok := scan.must()
	if tok.kind != tokenEOF {
		return nil, itShouldNotHaveEndedThisWay(tok)
	}
	return &Expr{n: n}, nil
}

// parseterm parses a single term. If there is no error, then parseterm pushes
// the last token it scans, including EOF. If the input is an empty
// subexpression ending at a close bracket, the result is nil with no error;
// callers must create an error in contexts where empty subexpressions are
// illegal.
func parseterm(scan *lexer, until operator) (*node, error) {
	n, err := parselhs(scan, until)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, nil
	}
	for {
		tok, err := scan.next()
		if err != nil {
			return nil, err
		}
		switch tok.kind {
		case tokenNum, tokenIdent, tokenOpen:
			// There is no implicit multiplication. 2pi and (1)(2) are errors.
			return nil, &TermError{Col: tok.pos, Text: tok.text}
		case tokenOp:
			if tok.text == "!" {
				// Postfix factorial.
				if !postfixprec.moreBinding(until) {
					scan.push(tok)
					return n, nil
				}
				n = &node{kind: nodeFact, left: n, pos: tok.pos}
				continue
			}
			prec := binop(tok.text)
			if prec.op == nodeNone {
				return nil, &OperatorError{Col: tok.pos, Operator: tok.text, Unary: false}
			}
			if !prec.moreBinding(until) {
				scan.push(tok)
				return n, nil
			}
			rhs, err := parseterm(scan, prec)
			if err != nil {
				return nil, err
			}
			if rhs == nil {
				return nil, emptyBefore(scan)
			}
			n = &node{kind: prec.op, left: n, right: rhs, pos: tok.pos}
		case tokenClose, tokenSep, tokenEOF:
			// End of expression.
			scan.push(tok)
			return n, nil
		default:
			panic("calculator: unknown token: " + tok.String())
		}
	}
}

// parselhs parses the first component of a term. I.e., operators are unary
// and any encountered token must be valid as the start of a subexpression.
func parselhs(scan *lexer, until operator) (*node, error) {
	tok, err := scan.next()
	if err != nil {
		return nil, err
	}
	var n *node
	switch tok.kind {
	case tokenNum:
		n = &node{kind: nodeNum, name: tok.text, val: tok.val, pos: tok.pos}
	case tokenIdent:
		nx, err := scan.next()
		if err != nil {
			return nil, err
		}
		if nx.kind != tokenOpen {
			scan.push(nx)
			n = &node{kind: nodeName, name: tok.text, pos: tok.pos}
			break
		}
		args, err := parsearglist(scan)
		if err != nil {
			return nil, err
		}
		n = &node{kind: nodeCall, name: tok.text, right: args, pos: tok.pos}
	case tokenOp:
		// unary operator
		prec := unop(tok.text)
		if prec.op == nodeNone {
			return nil, &OperatorError{Col: tok.pos, Operator: tok.text, Unary: true}
		}
		if !prec.moreBinding(until) {
			// x^-y -> x^(-y)
			// Just use the new operator's precedence to simplify.
			prec.prec, prec.right = until.prec, until.right
		}
		rhs, err := parseterm(scan, prec)
		if err != nil {
			return nil, err
		}
		if rhs == nil {
			return nil, emptyBefore(scan)
		}
		n = &node{kind: prec.op, left: rhs, pos: tok.pos}
	case tokenOpen:
		rhs, err := parseterm(scan, exprprec)
		if err != nil {
			return nil, err
		}
		end := scan.must()
		if end.kind != tokenClose {
			return nil, itShouldNotHaveEndedThisWay(end)
		}
		if rhs == nil {
			return nil, &EmptyExpressionError{Col: end.pos, End: end.text}
		}
		n = rhs
	case tokenClose:
		// This might be the end of f(), so just let the caller decide what to
		// do.
		scan.push(tok)
		return nil, nil
	case tokenSep:
		return nil, &SeparatorError{Col: tok.pos, Sep: tok.text}
	case tokenEOF:
		return nil, &EmptyExpressionError{Col: tok.pos, End: ""}
	default:
		panic("calculator: unknown token: " + tok.String())
	}
	return n, nil
}

// parsearglist parses a comma-separated list of zero or more args following
// an open bracket, through the matching close bracket.
func parsearglist(scan *lexer) (*node, error) {
	var n node
	l := &n
	len := 0
	for {
		rhs, err := parseterm(scan, exprprec)
		if err != nil {
			// As a special case, reporting an unclosed bracket is more helpful
			// than empty expression at the end of the input.
			if ee, _ := err.(*EmptyExpressionError); ee != nil && ee.End == "" {
				err = &BracketError{Col: ee.Col, Left: "("}
			}
			return nil, err
		}
		end := scan.must()
		switch end.kind {
		case tokenClose:
			if rhs == nil {
				// func() is allowed, but func(a,) isn't.
				if len != 0 {
					return nil, &EmptyExpressionError{Col: end.pos, End: end.text}
				}
				return nil, nil
			}
			l.right = &node{kind: nodeArg, left: rhs, pos: rhs.pos}
			return n.right, nil
		case tokenSep:
			len++
			l.right = &node{kind: nodeArg, left: rhs, pos: rhs.pos}
			l = l.right
		case tokenEOF:
			return nil, &BracketError{Col: end.pos, Left: "("}
		default:
			panic("calculator: parseterm ended on non-end token " + end.String())
		}
	}
}

// emptyBefore returns an error for an operator with no operand before the
// close bracket that parseterm pushed.
func emptyBefore(scan *lexer) error {
	end := scan.must()
	return &EmptyExpressionError{Col: end.pos, End: end.text}
}

// itShouldNotHaveEndedThisWay returns an error appropriate for an unexpected
// token at the end of a subexpression.
func itShouldNotHaveEndedThisWay(tok lexToken) error {
	switch tok.kind {
	case tokenEOF:
		// Unexpected EOF implies an open bracket that was not closed.
		return &BracketError{Col: tok.pos, Left: "("}
	case tokenClose:
		// A close bracket at the end of the input has nothing to match.
		return &BracketError{Col: tok.pos, Right: tok.text}
	case tokenSep:
		// Separator outside a function call.
		return &SeparatorError{Col: tok.pos, Sep: tok.text}
	default:
		panic("calculator: it really should not have ended this way: " + tok.String())
	}
}

// String creates a string representation of the parsed expression, with
// brackets grouping each term. Parsing the result gives the same expression.
func (e *Expr) String() string {
	return e.n.String()
}

type operator struct {
	// prec is the precedence value. Higher is more binding.
	prec int8
	// right indicates right-associativity.
	right bool
	// op is the node kind to use when this operator is selected.
	op nodeKind
}

func (p operator) moreBinding(than operator) bool {
	if p.prec != than.prec {
		return p.prec > than.prec
	}
	return p.right
}

// binop gets a binary operator for a token string. If there is no such binary
// operator, then the result has an op of nodeNone.
func binop(text string) operator {
	switch text {
	case "+":
		return operator{1, false, nodeAdd}
	case "-":
		return operator{1, false, nodeSub}
	case "*":
		return operator{5, false, nodeMul}
	case "/":
		return operator{5, false, nodeDiv}
	case "^":
		return operator{15, true, nodePow}
	default:
		return operator{}
	}
}

// unop gets a unary operator for a token string. If there is no such unary
// operator, then the result has an op of nodeNone.
func unop(text string) operator {
	switch text {
	case "+":
		return operator{10, true, nodeNop}
	case "-":
		return operator{10, true, nodeNeg}
	case "!":
		return operator{10, true, nodeFact}
	default:
		return operator{}
	}
}

var (
	// postfixprec is the precedence of postfix factorial. It matches the
	// unary prefix operators, so -3! is -(3!), and exponentiation binds
	// tighter, so 2^3! is (2^3)!.
	postfixprec = operator{10, true, nodeFact}
	// exprprec is the precedence required to parse an entire subexpression.
	exprprec = operator{-128, true, nodeNone}
)
