package lexer

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// TokenType represents different types of tokens
type TokenType int

const (
	// Special tokens
	ILLEGAL TokenType = iota
	EOF

	// Identifiers and literals
	IDENT  // add, foobar, x, y, ...
	NUMBER // 1343456, 3.14
	STRING // "foobar" or 'foobar'

	// Operators
	ASSIGN        // =
	PLUS          // +
	MINUS         // -
	BANG          // !
	ASTERISK      // *
	SLASH         // /
	PERCENT       // %
	LT            // <
	GT            // >
	LTE           // <=
	GTE           // >=
	EQ            // ==
	NOT_EQ        // !=
	STRICT_EQ     // ===
	STRICT_NOT_EQ // !==
	AND           // &&
	OR            // ||
	PIPE          // |
	QUESTION      // ?
	PLUSPLUS      // ++
	MINUSMINUS    // --
	PLUS_ASSIGN   // +=
	MINUS_ASSIGN  // -=

	// Delimiters
	COMMA     // ,
	SEMICOLON // ;
	COLON     // :
	DOT       // .
	DOTDOTDOT // ...
	LPAREN    // (
	RPAREN    // )
	LBRACE    // {
	RBRACE    // }
	LBRACKET  // [
	RBRACKET  // ]

	// Keywords
	TRUE   // "true"
	FALSE  // "false"
	NULL   // "null"
	THIS   // "this"
	TYPEOF // "typeof"
)

// Token represents a single token
type Token struct {
	Type    TokenType
	Literal string // decoded value for strings, source text otherwise
	Raw     string // exact source text, including quotes for strings
	Line    int
	Column  int
	Offset  int  // byte offset of the first character
	NewLine bool // a line break separates this token from the previous one
}

// String returns a string representation of the token
func (t Token) String() string {
	return fmt.Sprintf("{Type: %s, Literal: %s, Line: %d, Column: %d}",
		t.Type.String(), t.Literal, t.Line, t.Column)
}

var tokenNames = map[TokenType]string{
	ILLEGAL:       "ILLEGAL",
	EOF:           "EOF",
	IDENT:         "IDENT",
	NUMBER:        "NUMBER",
	STRING:        "STRING",
	ASSIGN:        "ASSIGN",
	PLUS:          "PLUS",
	MINUS:         "MINUS",
	BANG:          "BANG",
	ASTERISK:      "ASTERISK",
	SLASH:         "SLASH",
	PERCENT:       "PERCENT",
	LT:            "LT",
	GT:            "GT",
	LTE:           "LTE",
	GTE:           "GTE",
	EQ:            "EQ",
	NOT_EQ:        "NOT_EQ",
	STRICT_EQ:     "STRICT_EQ",
	STRICT_NOT_EQ: "STRICT_NOT_EQ",
	AND:           "AND",
	OR:            "OR",
	PIPE:          "PIPE",
	QUESTION:      "QUESTION",
	PLUSPLUS:      "PLUSPLUS",
	MINUSMINUS:    "MINUSMINUS",
	PLUS_ASSIGN:   "PLUS_ASSIGN",
	MINUS_ASSIGN:  "MINUS_ASSIGN",
	COMMA:         "COMMA",
	SEMICOLON:     "SEMICOLON",
	COLON:         "COLON",
	DOT:           "DOT",
	DOTDOTDOT:     "DOTDOTDOT",
	LPAREN:        "LPAREN",
	RPAREN:        "RPAREN",
	LBRACE:        "LBRACE",
	RBRACE:        "RBRACE",
	LBRACKET:      "LBRACKET",
	RBRACKET:      "RBRACKET",
	TRUE:          "TRUE",
	FALSE:         "FALSE",
	NULL:          "NULL",
	THIS:          "THIS",
	TYPEOF:        "TYPEOF",
}

// String returns a string representation of the token type
func (tt TokenType) String() string {
	if name, ok := tokenNames[tt]; ok {
		return name
	}
	return "UNKNOWN"
}

// Keywords map for identifying language keywords
var keywords = map[string]TokenType{
	"true":   TRUE,
	"false":  FALSE,
	"null":   NULL,
	"this":   THIS,
	"typeof": TYPEOF,
}

// LookupIdent checks if an identifier is a keyword
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// Lexer represents the lexical analyzer
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination (first byte)
	chRune       rune // current character as a rune
	chSize       int  // byte size of current character
	line         int  // current line number
	column       int  // current column number
	sawNewLine   bool // a newline was skipped before the next token
}

// New creates a new lexer instance
func New(input string) *Lexer {
	l := &Lexer{
		input:  input,
		line:   1,
		column: 0,
	}
	l.readChar()
	return l
}

// LexerState holds the state of a lexer for save/restore
type LexerState struct {
	position     int
	readPosition int
	ch           byte
	chRune       rune
	chSize       int
	line         int
	column       int
	sawNewLine   bool
}

// SaveState saves the current lexer state for potential restoration
func (l *Lexer) SaveState() LexerState {
	return LexerState{
		position:     l.position,
		readPosition: l.readPosition,
		ch:           l.ch,
		chRune:       l.chRune,
		chSize:       l.chSize,
		line:         l.line,
		column:       l.column,
		sawNewLine:   l.sawNewLine,
	}
}

// RestoreState restores the lexer to a previously saved state
func (l *Lexer) RestoreState(state LexerState) {
	l.position = state.position
	l.readPosition = state.readPosition
	l.ch = state.ch
	l.chRune = state.chRune
	l.chSize = state.chSize
	l.line = state.line
	l.column = state.column
	l.sawNewLine = state.sawNewLine
}

// PeekToken returns the next token without consuming it
func (l *Lexer) PeekToken() Token {
	state := l.SaveState()
	tok := l.NextToken()
	l.RestoreState(state)
	return tok
}

// Input returns the source text being scanned.
func (l *Lexer) Input() string {
	return l.input
}

// readChar reads the next character and advances position.
// ASCII takes the fast path; multi-byte runes are decoded so identifiers may be Unicode.
func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0 // ASCII NUL character represents EOF
		l.chRune = 0
		l.chSize = 0
		l.position = l.readPosition
		return
	}

	b := l.input[l.readPosition]

	if b < utf8.RuneSelf {
		l.ch = b
		l.chRune = rune(b)
		l.chSize = 1
		l.position = l.readPosition
		l.readPosition++

		if l.ch == '\n' {
			l.line++
			l.column = 0
		} else {
			l.column++
		}
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = b
	l.chRune = r
	l.chSize = size
	l.position = l.readPosition
	l.readPosition += size

	l.column++
}

// peekChar returns the next character without advancing position
func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// peekCharN returns the character n positions ahead without advancing position
func (l *Lexer) peekCharN(n int) byte {
	pos := l.readPosition + n - 1
	if pos >= len(l.input) {
		return 0
	}
	return l.input[pos]
}

// NextToken scans the input and returns the next token
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	line, col, offset := l.line, l.column, l.position
	newLine := l.sawNewLine
	l.sawNewLine = false

	mk := func(t TokenType, lit string) Token {
		return Token{Type: t, Literal: lit, Raw: lit, Line: line, Column: col, Offset: offset, NewLine: newLine}
	}
	// advance consumes n characters and builds the token from them
	advance := func(t TokenType, n int) Token {
		start := l.position
		for i := 0; i < n; i++ {
			l.readChar()
		}
		return mk(t, l.input[start:l.position])
	}

	switch l.ch {
	case 0:
		return mk(EOF, "")
	case '=':
		if l.peekChar() == '=' {
			if l.peekCharN(2) == '=' {
				return advance(STRICT_EQ, 3)
			}
			return advance(EQ, 2)
		}
		return advance(ASSIGN, 1)
	case '!':
		if l.peekChar() == '=' {
			if l.peekCharN(2) == '=' {
				return advance(STRICT_NOT_EQ, 3)
			}
			return advance(NOT_EQ, 2)
		}
		return advance(BANG, 1)
	case '+':
		switch l.peekChar() {
		case '+':
			return advance(PLUSPLUS, 2)
		case '=':
			return advance(PLUS_ASSIGN, 2)
		}
		return advance(PLUS, 1)
	case '-':
		switch l.peekChar() {
		case '-':
			return advance(MINUSMINUS, 2)
		case '=':
			return advance(MINUS_ASSIGN, 2)
		}
		return advance(MINUS, 1)
	case '*':
		return advance(ASTERISK, 1)
	case '/':
		return advance(SLASH, 1)
	case '%':
		return advance(PERCENT, 1)
	case '<':
		if l.peekChar() == '=' {
			return advance(LTE, 2)
		}
		return advance(LT, 1)
	case '>':
		if l.peekChar() == '=' {
			return advance(GTE, 2)
		}
		return advance(GT, 1)
	case '&':
		if l.peekChar() == '&' {
			return advance(AND, 2)
		}
		return advance(ILLEGAL, 1)
	case '|':
		if l.peekChar() == '|' {
			return advance(OR, 2)
		}
		return advance(PIPE, 1)
	case '?':
		return advance(QUESTION, 1)
	case ',':
		return advance(COMMA, 1)
	case ';':
		return advance(SEMICOLON, 1)
	case ':':
		return advance(COLON, 1)
	case '.':
		if l.peekChar() == '.' && l.peekCharN(2) == '.' {
			return advance(DOTDOTDOT, 3)
		}
		if isDigit(l.peekChar()) {
			return mk(NUMBER, l.readNumber())
		}
		return advance(DOT, 1)
	case '(':
		return advance(LPAREN, 1)
	case ')':
		return advance(RPAREN, 1)
	case '{':
		return advance(LBRACE, 1)
	case '}':
		return advance(RBRACE, 1)
	case '[':
		return advance(LBRACKET, 1)
	case ']':
		return advance(RBRACKET, 1)
	case '"', '\'':
		value, raw, terminated := l.readString(l.ch)
		tok := mk(STRING, value)
		tok.Raw = raw
		if !terminated {
			tok.Type = ILLEGAL
		}
		return tok
	}

	if isDigit(l.ch) {
		return mk(NUMBER, l.readNumber())
	}
	if isLetterRune(l.chRune) || l.ch == '$' {
		ident := l.readIdentifier()
		return mk(LookupIdent(ident), ident)
	}

	return advance(ILLEGAL, 1)
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetterRune(l.chRune) || isDigit(l.ch) || l.ch == '$' {
		l.readChar()
	}
	return l.input[position:l.position]
}

// readNumber reads an integer, decimal or exponent literal
func (l *Lexer) readNumber() string {
	position := l.position
	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // consume the '.'
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(l.peekCharN(2))) {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}

	return l.input[position:l.position]
}

// readString reads a quoted string literal with escape sequence support.
// Returns the decoded content, the raw source text and whether it was terminated.
func (l *Lexer) readString(quote byte) (string, string, bool) {
	start := l.position
	var result []byte
	l.readChar() // skip opening quote

	for l.ch != quote && l.ch != 0 {
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				result = append(result, '\n')
			case 't':
				result = append(result, '\t')
			case 'r':
				result = append(result, '\r')
			case 0:
				return string(result), l.input[start:l.position], false
			default:
				result = append(result, l.input[l.position:l.position+l.chSize]...)
			}
		} else {
			result = append(result, l.input[l.position:l.position+l.chSize]...)
		}
		l.readChar()
	}

	if l.ch != quote {
		return string(result), l.input[start:l.position], false
	}
	l.readChar() // closing quote
	return string(result), l.input[start:l.position], true
}

// skipWhitespace skips whitespace characters and remembers line breaks.
func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.chRune == ' ' {
		if l.ch == '\n' {
			l.sawNewLine = true
		}
		l.readChar()
	}
}

// isLetterRune checks if a rune is a valid identifier character (letter or underscore).
func isLetterRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

// isDigit checks if the character is a digit
func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// IsIdentifier reports whether s is a single valid identifier.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || r == '$' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return LookupIdent(s) == IDENT
}
