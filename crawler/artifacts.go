package crawler

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/use-agent/cookiediff/compare"
	"github.com/use-agent/cookiediff/freq"
	"github.com/use-agent/cookiediff/models"
)

// appendFeatures adds one capture of variant to the features.json of a
// clickstream directory, creating the file on first use.
func appendFeatures(dir, variant string, page models.PageFeatures) error {
	path := filepath.Join(dir, compare.FeaturesFile)

	f := make(models.Features)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("crawler: decode %s: %w", path, err)
		}
		if f == nil {
			f = make(models.Features)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Errorf("crawler: read %s: %w", path, err)
	}

	f.Append(models.FeatureInnerText, variant, freq.WordCounts(page.InnerText))
	f.Append(models.FeatureLinks, variant, freq.CountItems(page.Links))
	f.Append(models.FeatureImages, variant, freq.CountItems(page.Images))

	out, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("crawler: encode features: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("crawler: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("crawler: replace %s: %w", path, err)
	}
	return nil
}
