package lexer

import (
	"errors"
	"strings"

	"github.com/thisisjab/rulezilla/rule/token"
)

var (
	ErrEmptyInput         = errors.New("rule string must be a non-empty string")
	ErrTokenizationFailed = errors.New("unable to tokenize rule string")
)

type Lexer struct {
	input   []rune
	pos     int  // position of the current character in the input string
	readPos int  // position of the next character to be read
	char    rune // current character being processed
}

func New(input string) *Lexer {
	l := &Lexer{[]rune(input), 0, 0, 0}
	l.readChar()
	return l
}

// Tokenize splits input into its tokens, in source order. The trailing EOF
// token is not part of the result.
func Tokenize(input string) ([]token.Token, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}

	l := New(input)

	var tokens []token.Token
	for tok := l.NextToken(); tok.Type != token.EOF; tok = l.NextToken() {
		tokens = append(tokens, tok)
	}

	if len(tokens) == 0 {
		return nil, ErrTokenizationFailed
	}

	return tokens, nil
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.char = 0
	} else {
		l.char = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) atEnd() bool {
	return l.pos >= len(l.input)
}

// NextToken returns the next token. Characters that cannot start a token
// are skipped.
func (l *Lexer) NextToken() token.Token {
	for {
		l.skipWhitespace()

		if l.atEnd() {
			return token.Token{Type: token.EOF, Literal: ""}
		}

		switch {
		case l.char == '(':
			l.readChar()
			return token.Token{Type: token.LPAREN, Literal: "("}
		case l.char == ')':
			l.readChar()
			return token.Token{Type: token.RPAREN, Literal: ")"}
		case isWordChar(l.char):
			return l.readWord()
		case isComparison(l.char):
			return l.readComparison()
		case l.char == '\'':
			if tok, ok := l.readQuotedString(); ok {
				return tok
			}
		}

		l.readChar()
	}
}

func (l *Lexer) readWord() token.Token {
	pos := l.pos
	digitsOnly := true

	for !l.atEnd() && isWordChar(l.char) {
		if !isDigit(l.char) {
			digitsOnly = false
		}
		l.readChar()
	}

	literal := string(l.input[pos:l.pos])

	if digitsOnly {
		return token.Token{Type: token.INT, Literal: literal}
	}
	return token.Token{Type: token.LookupIdent(literal), Literal: literal}
}

func (l *Lexer) readComparison() token.Token {
	pos := l.pos
	for !l.atEnd() && isComparison(l.char) {
		l.readChar()
	}
	return token.Token{Type: token.COMPARISON, Literal: string(l.input[pos:l.pos])}
}

// readQuotedString reads a single-quoted literal and keeps both quotes in
// the token. An unterminated quote does not start a token.
func (l *Lexer) readQuotedString() (token.Token, bool) {
	end := -1
	for i := l.pos + 1; i < len(l.input); i++ {
		if l.input[i] == '\'' {
			end = i
			break
		}
	}
	if end < 0 {
		return token.Token{}, false
	}

	literal := string(l.input[l.pos : end+1])
	for l.pos <= end {
		l.readChar()
	}

	return token.Token{Type: token.STRING, Literal: literal}, true
}

func (l *Lexer) skipWhitespace() {
	for !l.atEnd() && isWhitespace(l.char) {
		l.readChar()
	}
}

func isWordChar(r rune) bool {
	return 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || r == '_' || isDigit(r)
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isComparison(r rune) bool {
	return r == '<' || r == '>' || r == '='
}
