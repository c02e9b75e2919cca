// internal/models/intent.go
package models

type KeyMetric string

const (
	MetricProteinQuality KeyMetric = "protein-quality"
	MetricPrice          KeyMetric = "price"
	MetricTaste          KeyMetric = "taste"
	MetricOther          KeyMetric = "other"
)

const DefaultDesireSummary = "general recommendation"

// Intent is the classifier's structured reading of one user turn.
type Intent struct {
	KeyMetric     KeyMetric `json:"keyMetric"`
	RelevantTags  []string  `json:"relevantTags"`
	DesireSummary string    `json:"desireSummary"`
}

// DefaultIntent is the neutral record substituted on any classifier failure.
func DefaultIntent() Intent {
	return Intent{
		KeyMetric:     MetricOther,
		RelevantTags:  []string{},
		DesireSummary: DefaultDesireSummary,
	}
}

// ParseKeyMetric accepts canonical names and the legacy sheet column aliases.
func ParseKeyMetric(s string) (KeyMetric, bool) {
	switch s {
	case string(MetricProteinQuality), "ProteinPerServing(g)", "ProteinPurity(%)", "protein_quality":
		return MetricProteinQuality, true
	case string(MetricPrice), "PricePerKg(JPY)":
		return MetricPrice, true
	case string(MetricTaste), "Taste":
		return MetricTaste, true
	case string(MetricOther), "Other":
		return MetricOther, true
	}
	return MetricOther, false
}
