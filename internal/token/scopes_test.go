package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseScopes(t *testing.T) {
	s := ParseScopes("  b a  a\tc ")
	assert.Equal(t, []string{"a", "b", "c"}, s.Sorted())
	assert.Equal(t, "a b c", s.String())
	assert.Empty(t, ParseScopes(""))
}

func TestScopeSet_Operations(t *testing.T) {
	a := NewScopeSet("x", "y")
	b := NewScopeSet("y", "z", "")

	assert.Equal(t, []string{"x", "y", "z"}, a.Union(b).Sorted())
	assert.Equal(t, []string{"x"}, a.Minus(b).Sorted())
	assert.True(t, a.Union(b).Contains(a))
	assert.False(t, a.Contains(b))
	assert.True(t, a.Contains(NewScopeSet()))
	assert.Len(t, b, 2)
}
