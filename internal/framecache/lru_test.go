package framecache

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testImg = image.NewGray(image.Rect(0, 0, 2, 2))

func TestLRU_NeverExceedsCapacity(t *testing.T) {
	c := newLRUCache(DefaultCapacity)

	for i := 0; i < DefaultCapacity*3; i++ {
		c.add(i, testImg)
		require.LessOrEqual(t, c.len(), DefaultCapacity)
	}
	assert.Equal(t, DefaultCapacity, c.len())
}

func TestLRU_TouchedEntrySurvivesEviction(t *testing.T) {
	c := newLRUCache(DefaultCapacity)

	// Fill to capacity with frames 0..127, then touch frame 0 so frame
	// 1 becomes the least recently used.
	for i := 0; i < DefaultCapacity; i++ {
		c.add(i, testImg)
	}
	_, ok := c.get(0)
	require.True(t, ok)

	c.add(DefaultCapacity, testImg)

	_, ok = c.get(0)
	assert.True(t, ok, "recently touched frame must survive")
	_, ok = c.get(1)
	assert.False(t, ok, "least recently used frame must be evicted")
}

func TestLRU_ReAddExistingPromotes(t *testing.T) {
	c := newLRUCache(2)
	c.add(1, testImg)
	c.add(2, testImg)
	c.add(1, testImg) // promote, not grow
	assert.Equal(t, 2, c.len())

	c.add(3, testImg) // evicts 2
	_, ok := c.get(2)
	assert.False(t, ok)
	_, ok = c.get(1)
	assert.True(t, ok)
}

func TestLRU_Purge(t *testing.T) {
	c := newLRUCache(4)
	c.add(1, testImg)
	c.add(2, testImg)
	c.purge()
	assert.Equal(t, 0, c.len())
	_, ok := c.get(1)
	assert.False(t, ok)
}

func TestLRU_MissReturnsFalse(t *testing.T) {
	c := newLRUCache(4)
	_, ok := c.get(99)
	assert.False(t, ok)
}
