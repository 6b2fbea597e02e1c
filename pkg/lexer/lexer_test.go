package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kristofer/vyse/pkg/lexer"
	"github.com/kristofer/vyse/pkg/token"
)

func typesOf(toks []token.Token) []token.Type {
	out := make([]token.Type, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestNextTokenPunctuationAndKeywords(t *testing.T) {
	src := `let x = 1 + 2 * 3 / 4 % 5 ** 6
const y = x <<< 1
if x == y and y != x or not_a_keyword { }`

	l := lexer.New(src)
	toks := l.Tokenize()

	assert.Equal(t, token.LET, toks[0].Type)
	assert.Equal(t, token.IDENT, toks[1].Type)
	assert.Equal(t, "x", toks[1].Lexeme)
	assert.Equal(t, token.ASSIGN, toks[2].Type)
	assert.Equal(t, token.NUMBER, toks[3].Type)
	assert.Contains(t, typesOf(toks), token.STAR_STAR)
	assert.Contains(t, typesOf(toks), token.SHL_CONCAT)
	assert.Contains(t, typesOf(toks), token.AND)
	assert.Contains(t, typesOf(toks), token.OR)
}

func TestLineComment(t *testing.T) {
	l := lexer.New("1 -- this is a comment\n2")
	toks := l.Tokenize()
	assert.Equal(t, []token.Type{token.NUMBER, token.NUMBER, token.EOF}, typesOf(toks))
	assert.Equal(t, "1", toks[0].Lexeme)
	assert.Equal(t, "2", toks[1].Lexeme)
	assert.Equal(t, 2, toks[1].Line)
}

func TestStringEscapes(t *testing.T) {
	l := lexer.New(`'it\'s here' "also \"quoted\""`)
	toks := l.Tokenize()
	require := assert.New(t)
	require.Equal(token.STRING, toks[0].Type)
	require.Equal("it's here", toks[0].Lexeme)
	require.Equal(token.STRING, toks[1].Type)
	require.Equal(`also "quoted"`, toks[1].Lexeme)
}

func TestUnterminatedStringIsIllegal(t *testing.T) {
	l := lexer.New(`'oops`)
	tok := l.NextToken()
	assert.Equal(t, token.ILLEGAL, tok.Type)
}

func TestNumberTrailingDotIsSeparator(t *testing.T) {
	// `3.` followed by a non-digit: the dot is scanned as a separate DOT
	// token, not a decimal point, per spec.md 4.1.
	l := lexer.New(`3.foo`)
	toks := l.Tokenize()
	assert.Equal(t, token.NUMBER, toks[0].Type)
	assert.Equal(t, "3", toks[0].Lexeme)
	assert.Equal(t, token.DOT, toks[1].Type)
	assert.Equal(t, token.IDENT, toks[2].Type)
}

func TestFloatLiteral(t *testing.T) {
	l := lexer.New(`3.14`)
	tok := l.NextToken()
	assert.Equal(t, token.NUMBER, tok.Type)
	assert.Equal(t, "3.14", tok.Lexeme)
}

func TestCompoundAssignAndBitwise(t *testing.T) {
	l := lexer.New(`a += 1; b -= 2; c *= 3; d /= 4; e %= 5; f & g | h ^ i; ~j; << >>`)
	toks := l.Tokenize()
	want := []token.Type{
		token.IDENT, token.PLUS_EQ, token.NUMBER, token.SEMI,
		token.IDENT, token.MINUS_EQ, token.NUMBER, token.SEMI,
		token.IDENT, token.STAR_EQ, token.NUMBER, token.SEMI,
		token.IDENT, token.SLASH_EQ, token.NUMBER, token.SEMI,
		token.IDENT, token.PERCENT_EQ, token.NUMBER, token.SEMI,
		token.IDENT, token.BAND, token.IDENT, token.BOR, token.IDENT, token.BXOR, token.IDENT, token.SEMI,
		token.BNOT, token.IDENT, token.SEMI,
		token.SHL, token.SHR, token.EOF,
	}
	assert.Equal(t, want, typesOf(toks))
}

func TestArrowAndSpread(t *testing.T) {
	l := lexer.New(`/x -> x + 1 ... .. .`)
	toks := l.Tokenize()
	assert.Contains(t, typesOf(toks), token.ARROW)
	assert.Contains(t, typesOf(toks), token.SPREAD)
	assert.Contains(t, typesOf(toks), token.CONCAT)
	assert.Contains(t, typesOf(toks), token.DOT)
}
