package ttlcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetGet(t *testing.T) {
	c := New[string, float64]()
	c.Set("vol:WETH", 3.2, time.Minute)

	v, ok := c.Get("vol:WETH")
	assert.True(t, ok)
	assert.Equal(t, 3.2, v)

	_, ok = c.Get("vol:WIF")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	now := time.Now()
	c := NewWithClock[string, string](func() time.Time { return now })

	c.Set("trend:WIF", "BULLISH", 30*time.Second)
	v, ok := c.Get("trend:WIF")
	assert.True(t, ok)
	assert.Equal(t, "BULLISH", v)

	now = now.Add(31 * time.Second)
	_, ok = c.Get("trend:WIF")
	assert.False(t, ok)
	// expired entry is evicted on read
	assert.Equal(t, 0, c.Len())
}

func TestOverwriteRefreshesTTL(t *testing.T) {
	now := time.Now()
	c := NewWithClock[string, int](func() time.Time { return now })

	c.Set("k", 1, 10*time.Second)
	now = now.Add(8 * time.Second)
	c.Set("k", 2, 10*time.Second)
	now = now.Add(8 * time.Second)

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestClear(t *testing.T) {
	c := New[int, int]()
	c.Set(1, 1, time.Minute)
	c.Set(2, 2, time.Minute)
	c.Clear()
	assert.Equal(t, 0, c.Len())
}
