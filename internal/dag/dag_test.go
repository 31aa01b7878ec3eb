package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDAGOrdering encodes the literal scenario: add(1,[2,3,4,5]); add(3,[4,5]);
// add(5,[]); add(2,[3,4,5]); add(4,[5]) yields iteration order [5,4,3,2,1].
func TestDAGOrdering(t *testing.T) {
	g := New[int, int]()
	g.Add(1, 1, []int{2, 3, 4, 5})
	g.Add(3, 3, []int{4, 5})
	g.Add(5, 5, nil)
	g.Add(2, 2, []int{3, 4, 5})
	g.Add(4, 4, []int{5})

	assert.True(t, g.Valid())
	assert.Equal(t, 5, g.Len())

	order, err := g.Order()
	assert.NoError(t, err)
	assert.Equal(t, []int{5, 4, 3, 2, 1}, order)
}

// TestDAGCycle: same setup but node 5 depends on node 1, forming a cycle.
func TestDAGCycle(t *testing.T) {
	g := New[int, int]()
	g.Add(1, 1, []int{2, 3, 4, 5})
	g.Add(3, 3, []int{4, 5})
	g.Add(5, 5, []int{1})
	g.Add(2, 2, []int{3, 4, 5})
	g.Add(4, 4, []int{5})

	assert.False(t, g.Valid())
	_, err := g.Order()
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Len(t, g.DeferredKeys(), 5)
	assert.ErrorIs(t, g.Diagnose(), ErrCycle)
}

func TestDAGDiagnoseMissingNode(t *testing.T) {
	g := New[string, int]()
	g.Add("a", 1, []string{"never-added"})
	assert.ErrorIs(t, g.Diagnose(), ErrMissingNode)
}

func TestDAGMissingDependencyStaysDeferred(t *testing.T) {
	g := New[string, int]()
	g.Add("a", 1, []string{"missing"})
	assert.False(t, g.Valid())
	assert.Equal(t, []string{"a"}, g.DeferredKeys())
}

func TestDAGGet(t *testing.T) {
	g := New[string, int]()
	g.Add("a", 42, nil)
	v, ok := g.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = g.Get("nope")
	assert.False(t, ok)
}
