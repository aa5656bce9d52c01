package compare

import (
	"sort"

	"github.com/use-agent/cookiediff/models"
)

// SummaryFeatures are the features with control and experimental
// differences, in report order.
var SummaryFeatures = []string{models.FeatureInnerText, models.FeatureLinks, models.FeatureImages, models.FeatureShingle}

// Summarize aggregates one feature over every step of every clickstream of
// a site: the mean control and experimental differences and their DiD.
// Only steps carrying both differences count. ok is false when no step
// does.
func Summarize(domain string, site models.SiteDifferences, feature string) (models.Summary, bool) {
	var control, experimental float64
	var n int

	for _, id := range sortedKeys(site) {
		steps := site[id]
		for _, step := range sortedKeys(steps) {
			s, ok := steps[step][feature]
			if !ok || s.ControlDiff == nil || s.ExperimentalDiff == nil {
				continue
			}
			control += *s.ControlDiff
			experimental += *s.ExperimentalDiff
			n++
		}
	}
	if n == 0 {
		return models.Summary{}, false
	}

	control /= float64(n)
	experimental /= float64(n)
	return models.Summary{
		Domain:           domain,
		Feature:          feature,
		Steps:            n,
		ControlDiff:      control,
		ExperimentalDiff: experimental,
		DiD:              experimental - control,
	}, true
}

// SummarizeAll summarizes every frequency feature and the shingle feature
// for each site in d, sorted by domain then feature order.
func SummarizeAll(d models.Differences) []models.Summary {
	domains := make([]string, 0, len(d))
	for domain := range d {
		domains = append(domains, domain)
	}
	sort.Strings(domains)

	var out []models.Summary
	for _, domain := range domains {
		for _, feature := range SummaryFeatures {
			if s, ok := Summarize(domain, d[domain], feature); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
