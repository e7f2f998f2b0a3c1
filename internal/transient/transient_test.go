package transient

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestSetGetExpiry(t *testing.T) {
	clk := newClock()
	c := New(16, WithClock(clk.Now))

	c.Set("a", "css", time.Hour)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "css", v)

	clk.Advance(59 * time.Minute)
	_, ok = c.Get("a")
	assert.True(t, ok)

	clk.Advance(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestHitRefreshesTTL(t *testing.T) {
	clk := newClock()
	c := New(16, WithClock(clk.Now))

	n, ok := c.Hit("n", 10, time.Minute)
	assert.True(t, ok)
	assert.Equal(t, 1, n)
	clk.Advance(50 * time.Second)
	n, _ = c.Hit("n", 10, time.Minute)
	assert.Equal(t, 2, n)
	clk.Advance(50 * time.Second)
	n, _ = c.Hit("n", 10, time.Minute)
	assert.Equal(t, 3, n)

	clk.Advance(time.Minute)
	n, _ = c.Hit("n", 10, time.Minute)
	assert.Equal(t, 1, n)
}

func TestHitOverLimitLeavesCounter(t *testing.T) {
	clk := newClock()
	c := New(16, WithClock(clk.Now))

	for i := 0; i < 3; i++ {
		_, ok := c.Hit("n", 3, time.Minute)
		require.True(t, ok)
	}
	clk.Advance(30 * time.Second)
	n, ok := c.Hit("n", 3, time.Minute)
	assert.False(t, ok)
	assert.Equal(t, 4, n)

	v, _ := c.Get("n")
	assert.Equal(t, 3, v)

	// the rejected hit did not extend the window
	clk.Advance(31 * time.Second)
	n, ok = c.Hit("n", 3, time.Minute)
	assert.True(t, ok)
	assert.Equal(t, 1, n)
}

func TestHitConcurrent(t *testing.T) {
	c := New(16)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Hit("n", 100, time.Minute)
		}()
	}
	wg.Wait()
	v, ok := c.Get("n")
	require.True(t, ok)
	assert.Equal(t, 50, v)
}

func TestDeletePrefix(t *testing.T) {
	c := New(16)
	c.Set("hls_font_css_1", "a", time.Hour)
	c.Set("hls_font_css_2", "b", time.Hour)
	c.Set("hls_admin_font_css", "c", time.Hour)

	assert.Equal(t, 2, c.DeletePrefix("hls_font_css_"))
	_, ok := c.Get("hls_font_css_1")
	assert.False(t, ok)
	_, ok = c.Get("hls_admin_font_css")
	assert.True(t, ok)

	c.Delete("hls_admin_font_css")
	assert.Equal(t, 0, c.Len())
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	c.Set("a", 1, time.Hour)
	c.Set("b", 2, time.Hour)
	c.Get("a")
	c.Set("c", 3, time.Hour)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
}
