package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 40, cfg.Analysis.ChunkSize)
	assert.Equal(t, 25, cfg.Analysis.Shards)
	assert.Equal(t, 5, cfg.Crawl.ClickstreamLength)
	assert.Equal(t, 50, cfg.Crawl.TotalActions)
	assert.Equal(t, "third-party", cfg.Crawl.Treatment)
	assert.Equal(t, []time.Duration{0, 3 * time.Second}, cfg.Resolver.EscalationDelays)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("COOKIEDIFF_CHUNK_SIZE", "20")
	t.Setenv("COOKIEDIFF_WAIT_TIME", "250ms")
	t.Setenv("COOKIEDIFF_API_KEYS", "k1, k2,,")
	t.Setenv("COOKIEDIFF_ESCALATION_DELAYS", "0s, 1s, bogus")
	t.Setenv("COOKIEDIFF_HEADLESS", "false")
	t.Setenv("COOKIEDIFF_SHARDS", "not-a-number")

	cfg := Load()

	assert.Equal(t, 20, cfg.Analysis.ChunkSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Crawl.WaitTime)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Auth.APIKeys)
	assert.Equal(t, []time.Duration{0, time.Second}, cfg.Resolver.EscalationDelays)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 25, cfg.Analysis.Shards)
}

func TestShardIndex(t *testing.T) {
	t.Setenv("COOKIEDIFF_SHARD", "")
	t.Setenv("SLURM_ARRAY_TASK_ID", "")
	assert.Equal(t, 0, ShardIndex())

	t.Setenv("SLURM_ARRAY_TASK_ID", "7")
	assert.Equal(t, 7, ShardIndex())

	t.Setenv("COOKIEDIFF_SHARD", "3")
	assert.Equal(t, 3, ShardIndex())
}

func TestManifestRoundTrip(t *testing.T) {
	root := t.TempDir()
	crawl := CrawlConfig{
		DataPath:          root,
		SiteListPath:      "sites.txt",
		TotalActions:      10,
		ClickstreamLength: 3,
		WaitTime:          2 * time.Second,
		Treatment:         "class:Targeting",
	}
	m := NewManifest("KJ2GW", crawl, StoreConfig{Path: "cookiediff.db"})
	require.NoError(t, m.Save())

	assert.Equal(t, filepath.Join(root, "KJ2GW"), m.DataPath)
	assert.Equal(t, filepath.Join(root, "KJ2GW", "cookiediff.db"), m.DatabasePath)

	got, err := LoadManifest(m.DataPath)
	require.NoError(t, err)
	assert.Equal(t, m.Name, got.Name)
	assert.Equal(t, m.ClickstreamLength, got.ClickstreamLength)
	assert.Equal(t, m.WaitTime, got.WaitTime)
	assert.True(t, m.CreatedAt.Equal(got.CreatedAt))

	cfg := Load()
	got.Apply(cfg)
	assert.Equal(t, 3, cfg.Crawl.ClickstreamLength)
	assert.Equal(t, "class:Targeting", cfg.Crawl.Treatment)
	assert.Equal(t, m.DatabasePath, cfg.Store.Path)
}

func TestLoadManifest_Errors(t *testing.T) {
	_, err := LoadManifest(t.TempDir())
	assert.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte("clickstream_length: -1\n"), 0o644))
	_, err = LoadManifest(dir)
	assert.Error(t, err)
}

func TestReadSiteList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.txt")
	require.NoError(t, os.WriteFile(path, []byte("a.test\n\n# comment\n  b.test  \n"), 0o644))

	sites, err := ReadSiteList(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.test", "b.test"}, sites)
}
