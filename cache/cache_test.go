package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/use-agent/cookiediff/models"
)

func TestCacheGetSet(t *testing.T) {
	c := New(10, time.Hour)
	defer c.Stop()

	_, ok := c.Get("example.com")
	assert.False(t, ok)

	diffs := models.SiteDifferences{1: {0: {models.FeatureLinks: models.NewScores(0.1, 0.3)}}}
	c.Set("example.com", diffs)
	got, ok := c.Get("example.com")
	assert.True(t, ok)
	assert.Equal(t, diffs, got)

	c.Invalidate("example.com")
	_, ok = c.Get("example.com")
	assert.False(t, ok)
}

func TestCacheCapacity(t *testing.T) {
	c := New(2, time.Hour)
	defer c.Stop()

	c.Set("a.test", nil)
	c.Set("b.test", nil)
	c.Set("b.test", nil)
	assert.Equal(t, 2, c.Len())

	c.Set("c.test", nil)
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("c.test")
	assert.True(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	c := New(10, time.Minute)
	defer c.Stop()

	c.Set("example.com", models.SiteDifferences{})
	c.evictExpired(time.Now().Add(30 * time.Second))
	assert.Equal(t, 1, c.Len())

	c.evictExpired(time.Now().Add(2 * time.Minute))
	assert.Zero(t, c.Len())
}
