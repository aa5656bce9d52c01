package models

// Features is the features.json document of one clickstream:
// feature kind → session variant → one frequency map per step.
type Features map[string]map[string][]map[string]int

// Steps returns the per-step frequency maps for a feature and variant,
// and whether they were captured at all.
func (f Features) Steps(feature, variant string) ([]map[string]int, bool) {
	byVariant, ok := f[feature]
	if !ok {
		return nil, false
	}
	steps, ok := byVariant[variant]
	if !ok || steps == nil {
		return nil, false
	}
	return steps, true
}

// Append records one step's frequency map for a feature and variant.
func (f Features) Append(feature, variant string, counts map[string]int) {
	byVariant, ok := f[feature]
	if !ok {
		byVariant = make(map[string][]map[string]int)
		f[feature] = byVariant
	}
	byVariant[variant] = append(byVariant[variant], counts)
}

// PageFeatures is what one capture reads from the rendered page before it
// is reduced to frequency maps.
type PageFeatures struct {
	InnerText string   `json:"innerText"`
	Links     []string `json:"links"`
	Images    []string `json:"img"`
}
