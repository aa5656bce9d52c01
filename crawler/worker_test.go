package crawler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/cookiediff/metrics"
	"github.com/use-agent/cookiediff/store"
)

func testQueue(t *testing.T, domains ...string) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	_, err = s.Enqueue(context.Background(), domains)
	require.NoError(t, err)
	return s
}

func TestWorkerDrainsQueue(t *testing.T) {
	ctx := context.Background()
	q := testQueue(t, "example.com", "down.test")
	m := metrics.New(prometheus.NewRegistry())

	b := &fakeBrowser{site: exampleSite()}
	w := &Worker{
		Crawler: New(testConfig(t, 3, 2), b.factory, fakeResolver{down: map[string]bool{"down.test": true}}, thirdParty, nil),
		Queue:   q,
		Shard:   4,
		Metrics: m,
	}

	n, err := w.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := q.QueueLen(ctx)
	require.NoError(t, err)
	assert.Zero(t, left)

	ok, err := q.Result(ctx, "example.com")
	require.NoError(t, err)
	require.NotNil(t, ok)
	assert.Equal(t, 4, ok.Shard)
	assert.True(t, ok.Successful())
	assert.GreaterOrEqual(t, ok.TotalTime, 0.0)

	down, err := q.Result(ctx, "down.test")
	require.NoError(t, err)
	require.NotNil(t, down)
	assert.True(t, down.LandingPageDown)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Crawls.WithLabelValues(StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Crawls.WithLabelValues(StatusLandingPageDown)))
}

func TestWorkerSiteTimeout(t *testing.T) {
	b := &fakeBrowser{site: exampleSite(), stall: true}
	w := &Worker{
		Crawler:     New(testConfig(t, 3, 2), b.factory, fakeResolver{}, thirdParty, nil),
		Queue:       testQueue(t),
		SiteTimeout: 20 * time.Millisecond,
		KillGrace:   time.Second,
	}

	result := w.CrawlSite(context.Background(), "example.com")
	assert.True(t, result.TimedOut)
	assert.Equal(t, "https://example.com/", result.URL)
	assert.False(t, result.UnexpectedException)
	assert.False(t, result.Successful())
}

func TestWorkerAbandonsStuckCrawl(t *testing.T) {
	stuck := make(chan struct{})
	t.Cleanup(func() { close(stuck) })

	b := &fakeBrowser{site: exampleSite(), ignore: stuck}
	cfg := testConfig(t, 3, 2)
	w := &Worker{
		Crawler:     New(cfg, b.factory, fakeResolver{}, thirdParty, nil),
		Queue:       testQueue(t),
		Shard:       1,
		SiteTimeout: 10 * time.Millisecond,
		KillGrace:   10 * time.Millisecond,
	}

	result := w.CrawlSite(context.Background(), "example.com")
	assert.True(t, result.TimedOut)
	assert.Empty(t, result.URL)
	assert.Equal(t, filepath.Join(cfg.DataPath, "example.com"), result.DataPath)
	assert.Equal(t, 1, result.Shard)
}

func TestWorkerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := &Worker{
		Crawler: New(testConfig(t, 3, 2), (&fakeBrowser{}).factory, fakeResolver{}, thirdParty, nil),
		Queue:   testQueue(t, "example.com"),
	}
	n, err := w.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}
