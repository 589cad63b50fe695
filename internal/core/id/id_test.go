package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLocal(t *testing.T) {
	a := NewLocal(PrefixOrder)
	b := NewLocal(PrefixOrder)

	assert.NotEqual(t, a, b)
	assert.True(t, IsLocal(a, PrefixOrder))
	assert.False(t, IsLocal(a, PrefixPicking))
	assert.Equal(t, PrefixOrder, PrefixOf(a))
	assert.Equal(t, "", PrefixOf("nounderscore"))
	assert.False(t, IsLocal("order_not-a-uuid", PrefixOrder))
}
