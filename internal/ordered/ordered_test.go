package ordered

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetPreservesInsertionOrder(t *testing.T) {
	s := NewSet[string]()
	s.Add("b")
	s.Add("a")
	s.Add("c")
	s.Add("a") // duplicate, no-op
	assert.Equal(t, []string{"b", "a", "c"}, s.Items())
	assert.Equal(t, 3, s.Len())
}

func TestSetRemoveReindexes(t *testing.T) {
	s := NewSetOf(1, 2, 3, 4)
	assert.True(t, s.Remove(2))
	assert.Equal(t, []int{1, 3, 4}, s.Items())
	assert.False(t, s.Remove(2))
}

func TestSetSubtractThenUnionMovesReferenceToEnd(t *testing.T) {
	s := NewSetOf("libA", "libB", "libC")
	s.SubtractThenUnion([]string{"libA"})
	assert.Equal(t, []string{"libB", "libC", "libA"}, s.Items())
}

func TestSetUnion(t *testing.T) {
	a := NewSetOf(1, 2)
	b := NewSetOf(2, 3)
	u := a.Union(b)
	assert.Equal(t, []int{1, 2, 3}, u.Items())
}

func TestMapPreservesInsertionOrderAcrossUpdates(t *testing.T) {
	m := NewMap[string, int]()
	m.Set("x", 1)
	m.Set("y", 2)
	m.Set("x", 10) // update, keeps original position
	assert.Equal(t, []string{"x", "y"}, m.Keys())
	assert.Equal(t, []int{10, 2}, m.Values())
}

func TestMapDeleteReindexes(t *testing.T) {
	m := NewMap[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)
	m.Delete("b")
	assert.Equal(t, []string{"a", "c"}, m.Keys())
}
