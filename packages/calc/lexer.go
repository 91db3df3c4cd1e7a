package calc

import "strings"

// TokenType represents different types of tokens in formulas
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenEquals
	TokenNumber
	TokenString
	TokenBoolean
	TokenFunction
	TokenUnaryPrefixOp
	TokenUnaryPostfixOp
	TokenBinaryOp
	TokenComma
	TokenLeftParen
	TokenRightParen
	TokenLeftBracket
	TokenRightBracket
	TokenIdentifier
	TokenWhitespace
	TokenError
)

// BinaryOp represents binary operators in AST nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpPower
	BinOpConcat
	BinOpEqual
	BinOpNotEqual
	BinOpLess
	BinOpLessEqual
	BinOpGreater
	BinOpGreaterEqual
)

// UnaryOp represents unary operators in AST nodes
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
	UnaryOpPercent
)

// character classification constants. slightly easier to read.
const (
	charNull       = 0
	charTab        = '\t'
	charNewline    = '\n'
	charReturn     = '\r'
	charSpace      = ' '
	charQuote      = '"'
	charPercent    = '%'
	charAmpersand  = '&'
	charLParen     = '('
	charRParen     = ')'
	charLBracket   = '['
	charRBracket   = ']'
	charAsterisk   = '*'
	charPlus       = '+'
	charComma      = ','
	charMinus      = '-'
	charPeriod     = '.'
	charSlash      = '/'
	charLess       = '<'
	charEqual      = '='
	charGreater    = '>'
	charCaret      = '^'
	charUnderscore = '_'
	charExclaim    = '!'
)

// valueStarts are the tokens that may begin an operand
var valueStarts = map[TokenType]bool{
	TokenNumber:        true,
	TokenString:        true,
	TokenBoolean:       true,
	TokenFunction:      true,
	TokenIdentifier:    true,
	TokenLeftParen:     true,
	TokenUnaryPrefixOp: true,
}

// tokenTransitions maps the current state to valid next token types
var tokenTransitions = map[TokenState]map[TokenType]bool{
	StateStart: union(valueStarts, map[TokenType]bool{
		TokenEquals: true, // optional formula prefix
	}),
	StateAfterEquals:   valueStarts,
	StateAfterOperator: valueStarts,
	StateAfterComma:    valueStarts, // only valid in function context
	StateAfterLeftParen: union(valueStarts, map[TokenType]bool{
		TokenRightParen: true, // empty parens for arg-less functions like PI()
	}),
	StateAfterLeftBracket: valueStarts,
	StateAfterValue: { // after number, string, boolean, ']'
		TokenBinaryOp:       true,
		TokenUnaryPostfixOp: true, // for %
		TokenRightParen:     true,
		TokenRightBracket:   true,
		TokenComma:          true,
		TokenEOF:            true,
	},
	StateAfterRightParen: {
		TokenBinaryOp:       true,
		TokenUnaryPostfixOp: true,
		TokenRightParen:     true,
		TokenRightBracket:   true,
		TokenLeftBracket:    true, // UNIQUE(x)[0]
		TokenLeftParen:      true, // LAMBDA(x, x * 2)(5)
		TokenComma:          true,
		TokenEOF:            true,
	},
	StateAfterIdentifier: {
		TokenLeftParen:      true, // function call
		TokenLeftBracket:    true, // table.column[0]
		TokenBinaryOp:       true,
		TokenUnaryPostfixOp: true,
		TokenRightParen:     true,
		TokenRightBracket:   true,
		TokenComma:          true,
		TokenEOF:            true,
	},
}

func union(sets ...map[TokenType]bool) map[TokenType]bool {
	out := map[TokenType]bool{}
	for _, set := range sets {
		for k, v := range set {
			out[k] = v
		}
	}
	return out
}

// Token represents a lexical token with position information
type Token struct {
	Type  TokenType
	Value string
	Pos   int // rune position in input
}

// TokenState represents the lexer state for validation
type TokenState int

const (
	StateStart TokenState = iota
	StateAfterEquals
	StateAfterValue
	StateAfterOperator
	StateAfterLeftParen
	StateAfterRightParen
	StateAfterLeftBracket
	StateAfterComma
	StateAfterIdentifier
)

// Lexer tokenizes formula expressions
type Lexer struct {
	input        string
	runes        []rune // UTF-8 aware representation
	pos          int
	state        TokenState
	parenDepth   int
	bracketDepth int
	tokens       []Token
}

// NewLexer creates a new lexer for the given formula input
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		runes:  []rune(input),
		state:  StateStart,
		tokens: []Token{},
	}
}

// Tokenize tokenizes the entire input. The leading '=' is optional.
func (l *Lexer) Tokenize() ([]Token, error) {
	if strings.TrimSpace(l.input) == "" || strings.TrimSpace(l.input) == "=" {
		return nil, NewEvalError(ErrorKindParse, "empty formula")
	}

	for {
		tok := l.nextToken()
		if tok.Type == TokenError {
			return nil, NewEvalError(ErrorKindParse, "%s in %q", tok.Value, l.input)
		}
		if tok.Type == TokenEOF {
			break
		}
		if !l.validateTransition(tok.Type) {
			return nil, NewEvalError(ErrorKindParse, "unexpected token: %s in %q", tok.Value, l.input)
		}
		l.tokens = append(l.tokens, tok)
		l.updateState(tok.Type)
	}

	if l.parenDepth > 0 {
		return nil, NewEvalError(ErrorKindParse, "unbalanced parentheses: missing closing parenthesis in %q", l.input)
	}
	if l.bracketDepth > 0 {
		return nil, NewEvalError(ErrorKindParse, "unbalanced brackets: missing ']' in %q", l.input)
	}
	if !l.validateTransition(TokenEOF) {
		return nil, NewEvalError(ErrorKindParse, "unexpected end of formula %q", l.input)
	}

	l.tokens = append(l.tokens, Token{Type: TokenEOF, Pos: l.pos})
	return l.tokens, nil
}

// validateTransition checks if the token type is valid in current state
func (l *Lexer) validateTransition(tokenType TokenType) bool {
	validTokens, exists := tokenTransitions[l.state]
	if !exists {
		return false
	}
	return validTokens[tokenType]
}

// updateState updates the lexer state based on the token type
func (l *Lexer) updateState(tokenType TokenType) {
	switch tokenType {
	case TokenEquals:
		l.state = StateAfterEquals
	case TokenNumber, TokenString, TokenBoolean, TokenRightBracket:
		l.state = StateAfterValue
	case TokenUnaryPrefixOp, TokenBinaryOp:
		l.state = StateAfterOperator
	case TokenUnaryPostfixOp:
		// postfix operators don't change state
	case TokenLeftParen:
		l.state = StateAfterLeftParen
	case TokenRightParen:
		l.state = StateAfterRightParen
	case TokenLeftBracket:
		l.state = StateAfterLeftBracket
	case TokenComma:
		l.state = StateAfterComma
	case TokenIdentifier, TokenFunction:
		l.state = StateAfterIdentifier
	}
}

// nextToken returns the next token from the input
func (l *Lexer) nextToken() Token {
	l.skipWhitespace()

	if l.pos >= len(l.runes) {
		return Token{Type: TokenEOF, Pos: l.pos}
	}

	startPos := l.pos
	ch := l.current()

	if ch == charQuote {
		return l.scanString()
	}

	if l.isDigit(ch) || (ch == charPeriod && l.isDigit(l.peek(1))) {
		return l.scanNumber()
	}

	switch ch {
	case charLParen:
		l.pos++
		l.parenDepth++
		return Token{Type: TokenLeftParen, Value: "(", Pos: startPos}
	case charRParen:
		l.pos++
		l.parenDepth--
		if l.parenDepth < 0 {
			return Token{Type: TokenError, Value: "unexpected closing parenthesis", Pos: startPos}
		}
		return Token{Type: TokenRightParen, Value: ")", Pos: startPos}
	case charLBracket:
		l.pos++
		l.bracketDepth++
		return Token{Type: TokenLeftBracket, Value: "[", Pos: startPos}
	case charRBracket:
		l.pos++
		l.bracketDepth--
		if l.bracketDepth < 0 {
			return Token{Type: TokenError, Value: "unexpected ']'", Pos: startPos}
		}
		return Token{Type: TokenRightBracket, Value: "]", Pos: startPos}
	case charComma:
		l.pos++
		return Token{Type: TokenComma, Value: ",", Pos: startPos}
	case charPlus, charMinus:
		return l.scanUnaryPrefixOrBinaryOp()
	case charAsterisk, charSlash, charCaret, charAmpersand, charLess, charGreater, charExclaim:
		return l.scanBinaryOp()
	case charPercent:
		l.pos++
		return Token{Type: TokenUnaryPostfixOp, Value: "%", Pos: startPos}
	case charEqual:
		l.pos++
		// distinguish between the formula prefix and the comparison operator
		if len(l.tokens) == 0 && l.state == StateStart {
			return Token{Type: TokenEquals, Value: "=", Pos: startPos}
		}
		return Token{Type: TokenBinaryOp, Value: "=", Pos: startPos}
	}

	if l.isAlpha(ch) || ch == charUnderscore {
		return l.scanIdentifier()
	}

	l.pos++
	return Token{Type: TokenError, Value: "unexpected character: " + string(ch), Pos: startPos}
}

// helper methods for character navigation and classification

func (l *Lexer) substring(start, end int) string {
	if start < 0 || end > len(l.runes) || start > end {
		return ""
	}
	return string(l.runes[start:end])
}

func (l *Lexer) current() rune {
	if l.pos >= len(l.runes) {
		return charNull
	}
	return l.runes[l.pos]
}

func (l *Lexer) peek(offset int) rune {
	pos := l.pos + offset
	if pos >= len(l.runes) || pos < 0 {
		return charNull
	}
	return l.runes[pos]
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charSpace || ch == charTab || ch == charNewline || ch == charReturn {
			l.pos++
		} else {
			break
		}
	}
}

func (l *Lexer) isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func (l *Lexer) isAlpha(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func (l *Lexer) isIdentifierChar(ch rune) bool {
	return l.isAlpha(ch) || l.isDigit(ch) || ch == charUnderscore || ch == charPeriod
}

// scanNumber scans a number token including decimals and scientific notation
func (l *Lexer) scanNumber() Token {
	startPos := l.pos

	for l.isDigit(l.current()) {
		l.pos++
	}

	if l.current() == charPeriod && l.isDigit(l.peek(1)) {
		l.pos++ // consume '.'
		for l.isDigit(l.current()) {
			l.pos++
		}
	}

	if l.current() == 'e' || l.current() == 'E' {
		savedPos := l.pos
		l.pos++

		if l.current() == charPlus || l.current() == charMinus {
			l.pos++
		}

		if !l.isDigit(l.current()) {
			// not scientific notation, restore position
			l.pos = savedPos
		} else {
			for l.isDigit(l.current()) {
				l.pos++
			}
		}
	}

	return Token{Type: TokenNumber, Value: l.substring(startPos, l.pos), Pos: startPos}
}

// scanString scans a string literal with support for double-quote escapes
func (l *Lexer) scanString() Token {
	startPos := l.pos
	l.pos++ // consume opening quote

	var result []rune
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charQuote {
			if l.peek(1) == charQuote {
				result = append(result, charQuote)
				l.pos += 2
				continue
			}
			l.pos++ // consume closing quote
			return Token{Type: TokenString, Value: string(result), Pos: startPos}
		}
		result = append(result, ch)
		l.pos++
	}

	return Token{Type: TokenError, Value: "unclosed string literal", Pos: startPos}
}

// scanIdentifier scans identifiers, qualified references, functions and
// booleans. dots are part of the identifier so that VAR.P( and
// table.column both come out as one token.
func (l *Lexer) scanIdentifier() Token {
	startPos := l.pos

	for l.pos < len(l.runes) && l.isIdentifierChar(l.current()) {
		l.pos++
	}

	value := l.substring(startPos, l.pos)
	upperValue := strings.ToUpper(value)

	if l.peekNonSpace() == charLParen {
		return Token{Type: TokenFunction, Value: upperValue, Pos: startPos}
	}

	if upperValue == "TRUE" || upperValue == "FALSE" {
		return Token{Type: TokenBoolean, Value: upperValue, Pos: startPos}
	}

	if strings.HasSuffix(value, ".") || strings.Contains(value, "..") {
		return Token{Type: TokenError, Value: "invalid reference: " + value, Pos: startPos}
	}

	return Token{Type: TokenIdentifier, Value: value, Pos: startPos}
}

// peekNonSpace returns the next rune after any whitespace without
// consuming anything
func (l *Lexer) peekNonSpace() rune {
	for i := l.pos; i < len(l.runes); i++ {
		switch l.runes[i] {
		case charSpace, charTab, charNewline, charReturn:
			continue
		default:
			return l.runes[i]
		}
	}
	return charNull
}

// scanUnaryPrefixOrBinaryOp scans + and - which can be either unary
// prefix or binary
func (l *Lexer) scanUnaryPrefixOrBinaryOp() Token {
	startPos := l.pos
	ch := l.current()
	l.pos++

	if l.isUnaryContext() {
		return Token{Type: TokenUnaryPrefixOp, Value: string(ch), Pos: startPos}
	}
	return Token{Type: TokenBinaryOp, Value: string(ch), Pos: startPos}
}

// scanBinaryOp scans binary operators
func (l *Lexer) scanBinaryOp() Token {
	startPos := l.pos
	ch := l.current()
	l.pos++

	switch ch {
	case charLess:
		if l.current() == charEqual {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: "<=", Pos: startPos}
		} else if l.current() == charGreater {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: "<>", Pos: startPos}
		}
		return Token{Type: TokenBinaryOp, Value: "<", Pos: startPos}
	case charGreater:
		if l.current() == charEqual {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: ">=", Pos: startPos}
		}
		return Token{Type: TokenBinaryOp, Value: ">", Pos: startPos}
	case charExclaim:
		if l.current() == charEqual {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: "!=", Pos: startPos}
		}
		return Token{Type: TokenError, Value: "unexpected '!'", Pos: startPos}
	case charAsterisk:
		return Token{Type: TokenBinaryOp, Value: "*", Pos: startPos}
	case charSlash:
		return Token{Type: TokenBinaryOp, Value: "/", Pos: startPos}
	case charCaret:
		return Token{Type: TokenBinaryOp, Value: "^", Pos: startPos}
	case charAmpersand:
		return Token{Type: TokenBinaryOp, Value: "&", Pos: startPos}
	}

	return Token{Type: TokenError, Value: "unknown operator", Pos: startPos}
}

// isUnaryContext checks if the current context allows for unary operators
func (l *Lexer) isUnaryContext() bool {
	// unary operators are allowed at the start, after '=', after another
	// operator, and after an opening paren, bracket or comma
	switch l.state {
	case StateStart, StateAfterEquals, StateAfterOperator, StateAfterLeftParen, StateAfterLeftBracket, StateAfterComma:
		return true
	default:
		return false
	}
}
