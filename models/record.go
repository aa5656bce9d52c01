package models

// Feature names used as keys in a DiffRecord.
const (
	FeatureInnerText  = "innerText"
	FeatureLinks      = "links"
	FeatureImages     = "img"
	FeatureShingle    = "shingle"
	FeatureScreenshot = "screenshot"
)

// FrequencyFeatures lists the feature kinds captured as frequency maps,
// in the order they are written to features.json.
var FrequencyFeatures = []string{FeatureInnerText, FeatureLinks, FeatureImages}

// Session variants of one clickstream run.
const (
	VariantBaseline     = "baseline"
	VariantControl      = "control"
	VariantExperimental = "experimental"
)

// Variants lists the three session variants in capture order.
var Variants = []string{VariantBaseline, VariantControl, VariantExperimental}

// Scores holds the control/experimental comparison of one feature at one
// step. A nil field means the value could not be computed, which is not
// the same as a zero difference.
type Scores struct {
	ControlDiff      *float64 `json:"control_diff,omitempty"`
	ExperimentalDiff *float64 `json:"experimental_diff,omitempty"`
	DiD              *float64 `json:"did,omitempty"`
}

// NewScores builds a complete Scores from control and experimental
// differences; did is experimental minus control.
func NewScores(controlDiff, experimentalDiff float64) Scores {
	did := experimentalDiff - controlDiff
	return Scores{
		ControlDiff:      &controlDiff,
		ExperimentalDiff: &experimentalDiff,
		DiD:              &did,
	}
}

// DiDOnly builds a Scores carrying only a difference-in-differences value,
// used by the positional screenshot comparison which subtracts control
// noise internally.
func DiDOnly(did float64) Scores {
	return Scores{DiD: &did}
}

// DiffRecord is the comparator output for one (site, clickstream, step):
// feature name → scores. Features that could not be computed are absent.
type DiffRecord map[string]Scores

// ClickstreamDifferences maps step index → DiffRecord.
type ClickstreamDifferences map[int]DiffRecord

// SiteDifferences maps clickstream id → step index → DiffRecord.
type SiteDifferences map[int]ClickstreamDifferences

// Differences maps site → clickstream id → step → feature → scores.
// It marshals to the nested JSON document produced by one analysis shard.
type Differences map[string]SiteDifferences

// Summary is the per-site aggregate of one feature across every step of
// every clickstream.
type Summary struct {
	Domain           string  `json:"domain"`
	Feature          string  `json:"feature"`
	Steps            int     `json:"steps"`
	ControlDiff      float64 `json:"control_diff"`
	ExperimentalDiff float64 `json:"experimental_diff"`
	DiD              float64 `json:"diff_in_diff"`
}
