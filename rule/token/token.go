package token

const (
	ILLEGAL TokenType = iota
	EOF

	// Identifiers + literals
	IDENT
	INT
	STRING

	// Delimiters
	LPAREN
	RPAREN

	// COMPARISON holds any run of '<', '>' and '='. The parser decides
	// which of those runs are valid operators.
	COMPARISON

	// Keyword identifiers
	AND
	OR
)

type TokenType int

var typeNames = [...]string{
	ILLEGAL:    "ILLEGAL",
	EOF:        "EOF",
	IDENT:      "IDENT",
	INT:        "INT",
	STRING:     "STRING",
	LPAREN:     "LPAREN",
	RPAREN:     "RPAREN",
	COMPARISON: "COMPARISON",
	AND:        "AND",
	OR:         "OR",
}

func (t TokenType) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "UNKNOWN"
	}
	return typeNames[t]
}

type Token struct {
	Type    TokenType
	Literal string
}

var keywords = map[string]TokenType{
	"AND": AND,
	"OR":  OR,
}

// LookupIdent returns the keyword type for ident, or IDENT when ident is not
// a keyword. Keywords are case-sensitive.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsLogical reports whether t joins two comparisons.
func (t TokenType) IsLogical() bool {
	return t == AND || t == OR
}

// IsLiteral reports whether t may appear on the right side of a comparison.
func (t TokenType) IsLiteral() bool {
	return t == INT || t == STRING || t == IDENT
}
