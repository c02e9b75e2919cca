// Package selector picks up to two recommendation candidates for a turn from
// the catalog snapshot, given the classified intent and the persona.
package selector

import (
	"sort"

	"protein-advisor/internal/models"
)

// MaxCandidates bounds every selection.
const MaxCandidates = 2

// Display strings per ranking branch.
const (
	LabelPurity = "protein purity (%)"
	LabelPrice  = "price per kg"
	LabelTaste  = "taste variety/reputation"

	ReasonQuality = "protein quality"
	ReasonPrice   = "cost efficiency"
	ReasonTaste   = "taste quality/flavor variety"
)

// DefaultTasteTags are matched when the intent names no tag that any product
// carries. Tags match by substring, so "#tasty" matches "tasty".
var DefaultTasteTags = []string{"flavor-variety", "tasty", "フレーバー豊富", "美味しい"}

// Select is deterministic: identical inputs give identical ordered output.
// Candidates never contain the baseline and are never padded.
func Select(cat *models.Catalog, intent models.Intent, persona models.Persona) models.SelectionResult {
	baseline := ResolveBaseline(persona, cat)
	res := models.SelectionResult{
		KeyMetric:  intent.KeyMetric,
		Baseline:   baseline,
		Candidates: []models.Product{},
	}
	if cat.Len() == 0 {
		res.MetricLabel, res.MetricColumn, res.Reason = LabelPurity, models.ColumnPurity, ReasonQuality
		return res
	}

	pool := withoutID(cat.Products, baselineID(baseline))

	switch intent.KeyMetric {
	case models.MetricPrice:
		res.MetricLabel, res.MetricColumn, res.Reason = LabelPrice, models.ColumnPrice, ReasonPrice
		res.Candidates = top(rank(pool, models.ColumnPrice, ascending), MaxCandidates)

	case models.MetricTaste:
		res.MetricLabel, res.MetricColumn, res.Reason = LabelTaste, models.ColumnNone, ReasonTaste
		res.Candidates = selectByTaste(pool, intent.RelevantTags)

	default:
		res.MetricLabel, res.MetricColumn, res.Reason = LabelPurity, models.ColumnPurity, ReasonQuality
		res.Candidates = top(rank(pool, models.ColumnPurity, descending), MaxCandidates)
	}
	return res
}

// selectByTaste keeps catalog order among tag matches rather than re-ranking.
// One match is paired with the cheapest other product. With no usable match
// the default tags are tried, then the purity ranking.
func selectByTaste(pool []models.Product, tags []string) []models.Product {
	if len(tags) > 0 {
		matched := filterByTags(pool, tags)
		switch {
		case len(matched) >= MaxCandidates:
			return top(matched, MaxCandidates)
		case len(matched) == 1:
			out := []models.Product{matched[0]}
			cheapest := top(rank(withoutID(pool, matched[0].ID), models.ColumnPrice, ascending), 1)
			return append(out, cheapest...)
		}
	}

	if fallback := filterByTags(pool, DefaultTasteTags); len(fallback) >= MaxCandidates {
		return top(fallback, MaxCandidates)
	}
	return top(rank(pool, models.ColumnPurity, descending), MaxCandidates)
}

type direction bool

const (
	ascending  direction = true
	descending direction = false
)

// rank drops rows without a value in column and stable-sorts the rest, so ties
// keep catalog order.
func rank(products []models.Product, column models.MetricColumn, dir direction) []models.Product {
	type scored struct {
		p models.Product
		v float64
	}
	eligible := make([]scored, 0, len(products))
	for i := range products {
		if v, ok := column.MetricValue(&products[i]); ok {
			eligible = append(eligible, scored{p: products[i], v: v})
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		if dir == ascending {
			return eligible[i].v < eligible[j].v
		}
		return eligible[i].v > eligible[j].v
	})

	out := make([]models.Product, len(eligible))
	for i, s := range eligible {
		out[i] = s.p
	}
	return out
}

func filterByTags(products []models.Product, tags []string) []models.Product {
	var out []models.Product
	for i := range products {
		for _, tag := range tags {
			if products[i].HasTag(tag) {
				out = append(out, products[i])
				break
			}
		}
	}
	return out
}

// top returns at most n rows with pairwise-unique identifiers.
func top(products []models.Product, n int) []models.Product {
	out := make([]models.Product, 0, n)
	seen := make(map[string]bool, n)
	for _, p := range products {
		if len(out) == n {
			break
		}
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

func withoutID(products []models.Product, id string) []models.Product {
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if id != "" && p.ID == id {
			continue
		}
		out = append(out, p)
	}
	return out
}

func baselineID(p *models.Product) string {
	if p == nil {
		return ""
	}
	return p.ID
}
