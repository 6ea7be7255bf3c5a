package calculator

import (
	"strconv"
	"strings"
)

// node is a node in the abstract syntax tree of an expression.
type node struct {
	kind nodeKind

	// name is the source text of numbers, names, and calls.
	name string
	// val is the value of a number.
	val float64
	// pos is the column of the token that created the node.
	pos int

	left  *node
	right *node
}

type nodeKind int8

const (
	nodeNone nodeKind = iota

	nodeNum  // val
	nodeName // constant lookup(name)

	nodeCall // name is Func to call, right is link to nodeArg unless niladic
	nodeArg  // eval left, right is link to next arg

	nodeNeg  // evaluate left, then negate
	nodeNop  // evaluate left
	nodeFact // evaluate left, then factorial
	nodeAdd  // evaluate left, add right
	nodeSub  // evaluate left, sub right
	nodeMul  // evaluate left, mul right
	nodeDiv  // evaluate left, div by right
	nodePow  // evaluate left, exp by right
)

func (k nodeKind) String() string {
	switch k {
	case nodeNone:
		return "None"
	case nodeNum:
		return "Num"
	case nodeName:
		return "Name"
	case nodeCall:
		return "Call"
	case nodeArg:
		return "Arg"
	case nodeNeg:
		return "Neg"
	case nodeNop:
		return "Nop"
	case nodeFact:
		return "Fact"
	case nodeAdd:
		return "Add"
	case nodeSub:
		return "Sub"
	case nodeMul:
		return "Mul"
	case nodeDiv:
		return "Div"
	case nodePow:
		return "Pow"
	default:
		return "nodeKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// op returns the source text of a binary operator node kind, or the name of
// the operation for unary kinds. Errors use it to name the failing operation.
func (k nodeKind) op() string {
	switch k {
	case nodeNeg:
		return "-"
	case nodeFact:
		return "factorial"
	case nodeAdd:
		return "+"
	case nodeSub:
		return "-"
	case nodeMul:
		return "*"
	case nodeDiv:
		return "/"
	case nodePow:
		return "^"
	default:
		return ""
	}
}

func (n *node) String() string {
	var b strings.Builder
	n.fmt(&b)
	return b.String()
}

// fmt writes the node with round brackets around each term. The output uses
// only characters in Allowed, so it parses to the same tree.
func (n *node) fmt(b *strings.Builder) {
	b.WriteByte('(')
	defer b.WriteByte(')')
	switch n.kind {
	case nodeNum, nodeName:
		b.WriteString(n.name)
	case nodeCall:
		b.WriteString(n.name)
		n.fmtargs(b)
	case nodeNeg:
		b.WriteByte('-')
		n.left.fmt(b)
	case nodeNop:
		b.WriteByte('+')
		n.left.fmt(b)
	case nodeFact:
		n.left.fmt(b)
		b.WriteByte('!')
	case nodeAdd, nodeSub, nodeMul, nodeDiv, nodePow:
		n.left.fmt(b)
		b.WriteString(n.kind.op())
		n.right.fmt(b)
	default:
		panic("calculator: cannot print node kind " + n.kind.String() + " after writing " + b.String())
	}
}

func (n *node) fmtargs(b *strings.Builder) {
	b.WriteByte('(')
	defer b.WriteByte(')')
	if n.right == nil {
		// Niladic call.
		return
	}
	n = n.right
	n.left.fmt(b)
	for n.right != nil {
		n = n.right
		b.WriteByte(',')
		n.left.fmt(b)
	}
}

// args counts the arguments of a call node.
func (n *node) args() int {
	k := 0
	for l := n.right; l != nil; l = l.right {
		k++
	}
	return k
}
