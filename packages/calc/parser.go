package calc

import (
	"fmt"
	"strconv"
	"strings"
)

type NodePosition struct {
	Start int
	End   int
}

// ASTNode is a parsed formula expression. The tree is what dependency
// extraction, aggregation detection and the formula cache walk over,
// rather than regex/string manipulation.
type ASTNode interface {
	Eval(e *Evaluator, ctx *EvalContext) (Value, error)
	GetPosition() NodePosition
	ToString() string
	Children() []ASTNode
}

// Parser parses tokens into an AST
type Parser struct {
	tokens []Token
	pos    int
}

// StringNode represents a string literal
type StringNode struct {
	Value    string
	Position NodePosition
}

func (n *StringNode) Eval(e *Evaluator, ctx *EvalContext) (Value, error) {
	return Text(n.Value), nil
}

func (n *StringNode) GetPosition() NodePosition { return n.Position }
func (n *StringNode) Children() []ASTNode       { return nil }

func (n *StringNode) ToString() string {
	escaped := strings.ReplaceAll(n.Value, "\"", "\"\"")
	return fmt.Sprintf("\"%s\"", escaped)
}

// NumberNode represents a numeric literal
type NumberNode struct {
	Value    float64
	Position NodePosition
}

func (n *NumberNode) Eval(e *Evaluator, ctx *EvalContext) (Value, error) {
	return Number(n.Value), nil
}

func (n *NumberNode) GetPosition() NodePosition { return n.Position }
func (n *NumberNode) Children() []ASTNode       { return nil }

func (n *NumberNode) ToString() string {
	return formatNumber(n.Value)
}

// BooleanNode represents a boolean literal
type BooleanNode struct {
	Value    bool
	Position NodePosition
}

func (n *BooleanNode) Eval(e *Evaluator, ctx *EvalContext) (Value, error) {
	return Boolean(n.Value), nil
}

func (n *BooleanNode) GetPosition() NodePosition { return n.Position }
func (n *BooleanNode) Children() []ASTNode       { return nil }

func (n *BooleanNode) ToString() string {
	if n.Value {
		return "TRUE"
	}
	return "FALSE"
}

// ReferenceNode is a bare name (scalar, local column or LET binding) or
// a qualified table.column / section.scalar reference.
type ReferenceNode struct {
	Table    string // empty for bare names
	Name     string
	Position NodePosition
}

func (n *ReferenceNode) Eval(e *Evaluator, ctx *EvalContext) (Value, error) {
	return e.evalReference(n, ctx)
}

func (n *ReferenceNode) GetPosition() NodePosition { return n.Position }
func (n *ReferenceNode) Children() []ASTNode       { return nil }

// Qualified reports whether the reference has a table/section part
func (n *ReferenceNode) Qualified() bool {
	return n.Table != ""
}

func (n *ReferenceNode) ToString() string {
	if n.Table == "" {
		return n.Name
	}
	return n.Table + "." + n.Name
}

// IndexNode is a 0-based element access like table.column[2]
type IndexNode struct {
	Target   ASTNode
	Index    ASTNode
	Position NodePosition
}

func (n *IndexNode) Eval(e *Evaluator, ctx *EvalContext) (Value, error) {
	return e.evalIndex(n, ctx)
}

func (n *IndexNode) GetPosition() NodePosition { return n.Position }
func (n *IndexNode) Children() []ASTNode       { return []ASTNode{n.Target, n.Index} }

func (n *IndexNode) ToString() string {
	return fmt.Sprintf("%s[%s]", n.Target.ToString(), n.Index.ToString())
}

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	Op       BinaryOp
	Left     ASTNode
	Right    ASTNode
	Position NodePosition
}

func (n *BinaryOpNode) Eval(e *Evaluator, ctx *EvalContext) (Value, error) {
	left, err := n.Left.Eval(e, ctx)
	if err != nil {
		return Null, err
	}
	right, err := n.Right.Eval(e, ctx)
	if err != nil {
		return Null, err
	}
	return evalBinaryOp(n.Op, left, right)
}

func (n *BinaryOpNode) GetPosition() NodePosition { return n.Position }
func (n *BinaryOpNode) Children() []ASTNode       { return []ASTNode{n.Left, n.Right} }

var binaryOpSymbols = map[BinaryOp]string{
	BinOpAdd:          "+",
	BinOpSubtract:     "-",
	BinOpMultiply:     "*",
	BinOpDivide:       "/",
	BinOpPower:        "^",
	BinOpConcat:       "&",
	BinOpEqual:        "=",
	BinOpNotEqual:     "<>",
	BinOpLess:         "<",
	BinOpLessEqual:    "<=",
	BinOpGreater:      ">",
	BinOpGreaterEqual: ">=",
}

func (n *BinaryOpNode) ToString() string {
	return fmt.Sprintf("(%s%s%s)", n.Left.ToString(), binaryOpSymbols[n.Op], n.Right.ToString())
}

// UnaryOpNode represents a unary operation
type UnaryOpNode struct {
	Op       UnaryOp
	Operand  ASTNode
	Position NodePosition
}

func (n *UnaryOpNode) Eval(e *Evaluator, ctx *EvalContext) (Value, error) {
	val, err := n.Operand.Eval(e, ctx)
	if err != nil {
		return Null, err
	}
	return evalUnaryOp(n.Op, val)
}

func (n *UnaryOpNode) GetPosition() NodePosition { return n.Position }
func (n *UnaryOpNode) Children() []ASTNode       { return []ASTNode{n.Operand} }

func (n *UnaryOpNode) ToString() string {
	switch n.Op {
	case UnaryOpMinus:
		return "-" + n.Operand.ToString()
	case UnaryOpPercent:
		return fmt.Sprintf("(%s%%)", n.Operand.ToString())
	default:
		return "+" + n.Operand.ToString()
	}
}

// FunctionCallNode represents a call to a built-in function. The function
// is resolved against the registry at parse time.
type FunctionCallNode struct {
	Func     *FunctionDef
	Name     string // name as written, upper-cased
	Args     []ASTNode
	Position NodePosition
}

func (n *FunctionCallNode) Eval(e *Evaluator, ctx *EvalContext) (Value, error) {
	return e.call(n, ctx)
}

func (n *FunctionCallNode) GetPosition() NodePosition { return n.Position }
func (n *FunctionCallNode) Children() []ASTNode       { return n.Args }

func (n *FunctionCallNode) ToString() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.ToString()
	}
	return fmt.Sprintf("%s(%s)", n.Func.Name, strings.Join(args, ","))
}

// LambdaCallNode applies an inline LAMBDA to arguments, as in
// LAMBDA(x, x * 2)(5).
type LambdaCallNode struct {
	Lambda   *FunctionCallNode
	Args     []ASTNode
	Position NodePosition
}

func (n *LambdaCallNode) Eval(e *Evaluator, ctx *EvalContext) (Value, error) {
	return e.callLambda(n, ctx)
}

func (n *LambdaCallNode) GetPosition() NodePosition { return n.Position }

func (n *LambdaCallNode) Children() []ASTNode {
	return append([]ASTNode{n.Lambda}, n.Args...)
}

func (n *LambdaCallNode) ToString() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.ToString()
	}
	return fmt.Sprintf("%s(%s)", n.Lambda.ToString(), strings.Join(args, ","))
}

// Walk visits node and its descendants depth-first. Returning false from
// fn skips the children of that node.
func Walk(node ASTNode, fn func(ASTNode) bool) {
	if node == nil || !fn(node) {
		return
	}
	for _, child := range node.Children() {
		Walk(child, fn)
	}
}

// ParseFormula tokenizes and parses a formula string. The leading '=' is
// optional.
func ParseFormula(formula string) (ASTNode, error) {
	tokens, err := NewLexer(formula).Tokenize()
	if err != nil {
		return nil, err
	}
	node, err := NewParser(tokens).Parse()
	if err != nil {
		return nil, err
	}
	return node, nil
}

// NewParser creates a new parser with the given tokens
func NewParser(tokens []Token) *Parser {
	return &Parser{
		tokens: tokens,
		pos:    0,
	}
}

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

// Parse parses the tokens into an AST
func (p *Parser) Parse() (ASTNode, error) {
	if len(p.tokens) == 0 {
		return nil, NewEvalError(ErrorKindParse, "no tokens to parse")
	}

	// optional equals prefix
	if p.peek().Type == TokenEquals {
		p.pos++
	}

	node, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	if tok := p.peek(); tok.Type != TokenEOF {
		return nil, NewEvalError(ErrorKindParse, "unexpected token after expression: %s", tok.Value)
	}

	return node, nil
}

func span(left, right ASTNode) NodePosition {
	return NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End}
}

// parseComparison handles comparison operators (lowest precedence)
func (p *Parser) parseComparison() (ASTNode, error) {
	left, err := p.parseConcatenation()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "=":
			op = BinOpEqual
		case "<>", "!=":
			op = BinOpNotEqual
		case "<":
			op = BinOpLess
		case "<=":
			op = BinOpLessEqual
		case ">":
			op = BinOpGreater
		case ">=":
			op = BinOpGreaterEqual
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseConcatenation()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right, Position: span(left, right)}
	}

	return left, nil
}

// parseConcatenation handles string concatenation operator
func (p *Parser) parseConcatenation() (ASTNode, error) {
	left, err := p.parseAddition()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		if tok.Type != TokenBinaryOp || tok.Value != "&" {
			break
		}

		p.pos++
		right, err := p.parseAddition()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: BinOpConcat, Left: left, Right: right, Position: span(left, right)}
	}

	return left, nil
}

// parseAddition handles addition and subtraction
func (p *Parser) parseAddition() (ASTNode, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "+":
			op = BinOpAdd
		case "-":
			op = BinOpSubtract
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right, Position: span(left, right)}
	}

	return left, nil
}

// parseMultiplication handles multiplication and division
func (p *Parser) parseMultiplication() (ASTNode, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "*":
			op = BinOpMultiply
		case "/":
			op = BinOpDivide
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right, Position: span(left, right)}
	}

	return left, nil
}

// parsePower handles exponentiation
func (p *Parser) parsePower() (ASTNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	// right-associative
	if tok := p.peek(); tok.Type == TokenBinaryOp && tok.Value == "^" {
		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return &BinaryOpNode{Op: BinOpPower, Left: left, Right: right, Position: span(left, right)}, nil
	}

	return left, nil
}

// parseUnary handles unary operators
func (p *Parser) parseUnary() (ASTNode, error) {
	tok := p.peek()
	if tok.Type == TokenEOF {
		return nil, NewEvalError(ErrorKindParse, "unexpected end of expression")
	}

	if tok.Type == TokenUnaryPrefixOp {
		op := UnaryOpPlus
		if tok.Value == "-" {
			op = UnaryOpMinus
		}

		p.pos++
		operand, err := p.parseUnary() // recurse for chained unary operators
		if err != nil {
			return nil, err
		}

		return &UnaryOpNode{
			Op:       op,
			Operand:  operand,
			Position: NodePosition{Start: tok.Pos, End: operand.GetPosition().End},
		}, nil
	}

	return p.parsePostfix()
}

// parsePostfix handles lambda application, array indexing and the
// percent operator
func (p *Parser) parsePostfix() (ASTNode, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	if call, ok := node.(*FunctionCallNode); ok && call.Func.ID == FnLambda && p.peek().Type == TokenLeftParen {
		p.pos++
		args, err := p.parseArguments(call.Name)
		if err != nil {
			return nil, err
		}
		node = &LambdaCallNode{
			Lambda:   call,
			Args:     args,
			Position: NodePosition{Start: call.Position.Start, End: p.tokens[p.pos-1].Pos + 1},
		}
	}

	for p.peek().Type == TokenLeftBracket {
		p.pos++
		index, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		closing := p.peek()
		if closing.Type != TokenRightBracket {
			return nil, NewEvalError(ErrorKindParse, "expected ']' after index, got %q", closing.Value)
		}
		p.pos++
		node = &IndexNode{
			Target:   node,
			Index:    index,
			Position: NodePosition{Start: node.GetPosition().Start, End: closing.Pos + 1},
		}
	}

	if tok := p.peek(); tok.Type == TokenUnaryPostfixOp && tok.Value == "%" {
		p.pos++
		return &UnaryOpNode{
			Op:       UnaryOpPercent,
			Operand:  node,
			Position: NodePosition{Start: node.GetPosition().Start, End: tok.Pos + 1},
		}, nil
	}

	return node, nil
}

// parsePrimary handles primary expressions (literals, references,
// functions, parentheses)
func (p *Parser) parsePrimary() (ASTNode, error) {
	tok := p.peek()

	switch tok.Type {
	case TokenNumber:
		p.pos++
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, NewEvalError(ErrorKindParse, "invalid number: %s", tok.Value)
		}
		return &NumberNode{
			Value:    val,
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
		}, nil

	case TokenString:
		p.pos++
		return &StringNode{
			Value:    tok.Value,
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value) + 2}, // +2 for quotes
		}, nil

	case TokenBoolean:
		p.pos++
		return &BooleanNode{
			Value:    tok.Value == "TRUE",
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
		}, nil

	case TokenIdentifier:
		p.pos++
		return p.parseReference(tok)

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftParen:
		p.pos++
		node, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if p.peek().Type != TokenRightParen {
			return nil, NewEvalError(ErrorKindParse, "expected closing parenthesis")
		}
		p.pos++
		return node, nil

	case TokenEOF:
		return nil, NewEvalError(ErrorKindParse, "unexpected end of expression")

	default:
		return nil, NewEvalError(ErrorKindParse, "unexpected token: %s", tok.Value)
	}
}

// parseReference splits an identifier token into a bare or qualified
// reference
func (p *Parser) parseReference(tok Token) (ASTNode, error) {
	position := NodePosition{Start: tok.Pos, End: tok.Pos + len([]rune(tok.Value))}
	parts := strings.Split(tok.Value, ".")
	switch len(parts) {
	case 1:
		return &ReferenceNode{Name: parts[0], Position: position}, nil
	case 2:
		return &ReferenceNode{Table: parts[0], Name: parts[1], Position: position}, nil
	default:
		return nil, NewEvalError(ErrorKindParse, "invalid reference: %s (expected name or table.column)", tok.Value)
	}
}

// parseFunctionCall parses a function call
func (p *Parser) parseFunctionCall() (ASTNode, error) {
	funcTok := p.peek()
	if funcTok.Type != TokenFunction {
		return nil, NewEvalError(ErrorKindParse, "expected function name")
	}
	p.pos++

	def, ok := LookupFunction(funcTok.Value)
	if !ok {
		return nil, unknownFunctionError(funcTok.Value)
	}

	if p.peek().Type != TokenLeftParen {
		return nil, NewEvalError(ErrorKindParse, "expected '(' after function name")
	}
	p.pos++

	args, err := p.parseArguments(funcTok.Value)
	if err != nil {
		return nil, err
	}

	return &FunctionCallNode{
		Func:     def,
		Name:     funcTok.Value,
		Args:     args,
		Position: NodePosition{Start: funcTok.Pos, End: p.tokens[p.pos-1].Pos + 1},
	}, nil
}

// parseArguments parses a comma separated argument list up to and
// including the closing parenthesis. The opening one is already consumed.
func (p *Parser) parseArguments(name string) ([]ASTNode, error) {
	args := []ASTNode{}

	// check for empty argument list
	if p.peek().Type == TokenRightParen {
		p.pos++
		return args, nil
	}

	for {
		arg, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		tok := p.peek()
		if tok.Type == TokenRightParen {
			p.pos++
			return args, nil
		}
		if tok.Type != TokenComma {
			return nil, NewEvalError(ErrorKindParse, "expected ',' or ')' in arguments of %s", name)
		}
		p.pos++
	}
}
