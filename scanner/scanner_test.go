package scanner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"golox/token"
)

func TestNextToken(t *testing.T) {
	input := `let x = 5
let y = 10
let name = "Chidi"
print(name)
true
false
nil
// a comment
!= <= >= ==
`

	tests := []struct {
		wantType   token.Type
		wantLexeme string
	}{
		{token.LET, "let"},
		{token.IDENT, "x"},
		{token.EQUAL, "="},
		{token.NUMBER, "5"},
		{token.LET, "let"},
		{token.IDENT, "y"},
		{token.EQUAL, "="},
		{token.NUMBER, "10"},
		{token.LET, "let"},
		{token.IDENT, "name"},
		{token.EQUAL, "="},
		{token.STRING, "Chidi"},
		{token.PRINT, "print"},
		{token.LEFT_PAREN, "("},
		{token.IDENT, "name"},
		{token.RIGHT_PAREN, ")"},
		{token.TRUE, "true"},
		{token.FALSE, "false"},
		{token.NIL, "nil"},
		{token.BANG_EQUAL, "!="},
		{token.LESS_EQUAL, "<="},
		{token.GREATER_EQUAL, ">="},
		{token.EQUAL_EQUAL, "=="},
		{token.EOF, ""},
	}

	s := New(input)
	for i, tt := range tests {
		tok := s.NextToken()
		require.Equalf(t, tt.wantType, tok.Type, "tests[%d] wrong token type", i)
		require.Equalf(t, tt.wantLexeme, tok.Lexeme, "tests[%d] wrong lexeme", i)
	}
}

func TestNumberFraction(t *testing.T) {
	s := New("1.5 2. 3")
	require.Equal(t, "1.5", s.NextToken().Lexeme)

	dot := s.NextToken()
	require.Equal(t, token.NUMBER, dot.Type)
	require.Equal(t, "2", dot.Lexeme)
	require.Equal(t, token.DOT, s.NextToken().Type)

	three := s.NextToken()
	require.Equal(t, "3", three.Lexeme)
}

func TestStringDelimiters(t *testing.T) {
	s := New(`"double" 'single'`)
	require.Equal(t, "double", s.NextToken().Lexeme)
	require.Equal(t, "single", s.NextToken().Lexeme)
}

func TestStringSpansLines(t *testing.T) {
	s := New("\"line one\nline two\"\nafter")
	str := s.NextToken()
	require.Equal(t, token.STRING, str.Type)
	require.Equal(t, "line one\nline two", str.Lexeme)

	after := s.NextToken()
	require.Equal(t, "after", after.Lexeme)
	require.Equal(t, 3, after.Line)
}

func TestUnterminatedString(t *testing.T) {
	s := New(`"never closed`)
	tok := s.NextToken()
	require.Equal(t, token.ILLEGAL, tok.Type)
	require.Equal(t, "Unterminated string.", tok.Lexeme)
}

func TestIllegalCharacter(t *testing.T) {
	s := New("$")
	tok := s.NextToken()
	require.Equal(t, token.ILLEGAL, tok.Type)
	require.Equal(t, "Unexpected character.", tok.Lexeme)
}

func TestEOFRepeats(t *testing.T) {
	s := New("")
	require.Equal(t, token.EOF, s.NextToken().Type)
	require.Equal(t, token.EOF, s.NextToken().Type)
}
