// internal/models/selection.go
package models

// MetricColumn names the numeric axis a selection was ranked on.
type MetricColumn string

const (
	ColumnNone   MetricColumn = ""
	ColumnPurity MetricColumn = "purity"
	ColumnPrice  MetricColumn = "pricePerKg"
)

// SelectionResult is produced once per turn. Baseline and Candidates are
// copies of catalog rows; the snapshot itself is never handed out mutably.
type SelectionResult struct {
	KeyMetric    KeyMetric    `json:"keyMetric"`
	Baseline     *Product     `json:"baseline,omitempty"`
	Candidates   []Product    `json:"candidates"`
	MetricLabel  string       `json:"metricLabel"`
	MetricColumn MetricColumn `json:"metricColumn,omitempty"`
	Reason       string       `json:"reason"`
}

// MetricValue reads the ranking column off a product.
func (c MetricColumn) MetricValue(p *Product) (float64, bool) {
	if p == nil {
		return 0, false
	}
	var v *float64
	switch c {
	case ColumnPurity:
		v = p.Purity
	case ColumnPrice:
		v = p.PricePerKg
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// ComparisonRow is one line of the comparison table shown after a turn.
type ComparisonRow struct {
	ProductID  string   `json:"productId"`
	Name       string   `json:"name"`
	IsBaseline bool     `json:"isBaseline"`
	Purity     *float64 `json:"purity,omitempty"`
	Price      *float64 `json:"price,omitempty"`
	WeightKg   *float64 `json:"weightKg,omitempty"`
	PricePerKg *float64 `json:"pricePerKg,omitempty"`
}

// ComparisonTable lists the baseline first, then the candidates. Price per kg
// is only shown when the selection was price-driven.
func (r *SelectionResult) ComparisonTable() []ComparisonRow {
	if r == nil || len(r.Candidates) == 0 {
		return nil
	}
	rows := make([]ComparisonRow, 0, len(r.Candidates)+1)
	add := func(p *Product, baseline bool) {
		row := ComparisonRow{
			ProductID:  p.ID,
			Name:       p.Name,
			IsBaseline: baseline,
			Purity:     p.Purity,
			Price:      p.Price,
			WeightKg:   p.WeightKg,
		}
		if r.KeyMetric == MetricPrice {
			row.PricePerKg = p.PricePerKg
		}
		rows = append(rows, row)
	}
	if r.Baseline != nil {
		add(r.Baseline, true)
	}
	for i := range r.Candidates {
		add(&r.Candidates[i], false)
	}
	return rows
}
