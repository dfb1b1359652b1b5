package lru

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := New[string, int](3)
	require.NoError(t, err)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)
	c.Put("d", 4)

	assert.Equal(t, 3, c.Size())
	assert.False(t, c.Exist("a"))
	for _, k := range []string{"b", "c", "d"} {
		assert.True(t, c.Exist(k), k)
	}
}

func TestCache_GetPromotes(t *testing.T) {
	c, err := New[string, int](3)
	require.NoError(t, err)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	v, err := c.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	c.Put("d", 4)
	assert.True(t, c.Exist("a"))
	assert.False(t, c.Exist("b"))
}

func TestCache_ExistDoesNotPromote(t *testing.T) {
	c, err := New[int, string](2)
	require.NoError(t, err)

	c.Put(1, "one")
	c.Put(2, "two")
	require.True(t, c.Exist(1))
	c.Put(3, "three")

	assert.False(t, c.Exist(1))
	assert.True(t, c.Exist(2))
}

func TestCache_PutReplaces(t *testing.T) {
	c, err := New[string, int](2)
	require.NoError(t, err)

	c.Put("a", 1)
	c.Put("a", 10)
	assert.Equal(t, 1, c.Size())

	v, err := c.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 10, v)
}

func TestCache_GetMissing(t *testing.T) {
	c, err := New[string, int](2)
	require.NoError(t, err)

	_, err = c.Get("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCache_ClearAndRemove(t *testing.T) {
	var evicted []string
	c, err := NewWithEvict[string, int](4, func(k string, _ int) {
		evicted = append(evicted, k)
	})
	require.NoError(t, err)

	c.Put("a", 1)
	c.Put("b", 2)
	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))

	c.Clear()
	assert.Equal(t, 0, c.Size())
	assert.ElementsMatch(t, []string{"a", "b"}, evicted)
	assert.Equal(t, 4, c.Capacity())
}

func TestNew_InvalidCapacity(t *testing.T) {
	_, err := New[string, int](0)
	require.Error(t, err)
}
