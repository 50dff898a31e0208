package token_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rascal/internal/token"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "begin", token.KwBegin.String())
	assert.Equal(t, "..", token.DotDot.String())
	assert.Contains(t, token.Kind(9999).String(), "Kind(9999)")
}

func TestKeywordsAndOperatorsDisjoint(t *testing.T) {
	for word, kind := range token.Keywords {
		if _, ok := token.Operators[word]; ok {
			t.Fatalf("lexeme %q present in both Keywords and Operators", word)
		}
		assert.NotEqual(t, token.EOF, kind)
	}
}

func TestTokenIsArray(t *testing.T) {
	lo, hi := int64(1), int64(3)
	arr := token.Token{Kind: token.ArrayVar, Low: &lo, High: &hi}
	assert.True(t, arr.IsArray())

	scalar := token.Token{Kind: token.ScalarVar}
	assert.False(t, scalar.IsArray())
}

func TestPosString(t *testing.T) {
	assert.Equal(t, "3:7", token.Pos{Line: 3, Col: 7}.String())
}
