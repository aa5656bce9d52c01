package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the name of the manifest inside a crawl directory.
const ManifestFile = "config.yaml"

// Manifest describes one crawl. It is written by `init` and read back by
// every later stage so they agree on paths and clickstream parameters.
type Manifest struct {
	Name              string        `yaml:"crawl_name"`
	SiteListPath      string        `yaml:"site_list_path"`
	DataPath          string        `yaml:"data_path"`
	DatabasePath      string        `yaml:"database_path"`
	TotalActions      int           `yaml:"total_actions"`
	ClickstreamLength int           `yaml:"clickstream_length"`
	WaitTime          time.Duration `yaml:"wait_time"`
	Treatment         string        `yaml:"treatment"`
	CreatedAt         time.Time     `yaml:"created_at"`
}

// NewManifest builds a manifest for a crawl named name rooted at
// <crawl.DataPath>/<name>.
func NewManifest(name string, crawl CrawlConfig, st StoreConfig) *Manifest {
	root := filepath.Join(crawl.DataPath, name)
	db := st.Path
	if !filepath.IsAbs(db) {
		db = filepath.Join(root, filepath.Base(db))
	}
	return &Manifest{
		Name:              name,
		SiteListPath:      crawl.SiteListPath,
		DataPath:          root,
		DatabasePath:      db,
		TotalActions:      crawl.TotalActions,
		ClickstreamLength: crawl.ClickstreamLength,
		WaitTime:          crawl.WaitTime,
		Treatment:         crawl.Treatment,
		CreatedAt:         time.Now().UTC().Truncate(time.Second),
	}
}

// Save writes the manifest to <DataPath>/config.yaml.
func (m *Manifest) Save() error {
	if err := os.MkdirAll(m.DataPath, 0o755); err != nil {
		return fmt.Errorf("config: create %s: %w", m.DataPath, err)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("config: encode manifest: %w", err)
	}
	path := filepath.Join(m.DataPath, ManifestFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// LoadManifest reads <dir>/config.yaml.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if m.ClickstreamLength < 0 || m.TotalActions < 0 {
		return nil, fmt.Errorf("config: %s: negative clickstream parameters", path)
	}
	return &m, nil
}

// Apply copies the manifest's crawl parameters over c.
func (m *Manifest) Apply(c *Config) {
	c.Crawl.DataPath = m.DataPath
	c.Crawl.SiteListPath = m.SiteListPath
	c.Crawl.TotalActions = m.TotalActions
	c.Crawl.ClickstreamLength = m.ClickstreamLength
	c.Crawl.WaitTime = m.WaitTime
	c.Crawl.Treatment = m.Treatment
	c.Store.Path = m.DatabasePath
}

// ReadSiteList reads one domain per line, skipping blanks and # comments.
func ReadSiteList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open site list: %w", err)
	}
	defer f.Close()

	var sites []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sites = append(sites, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("config: read site list: %w", err)
	}
	return sites, nil
}
