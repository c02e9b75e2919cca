// internal/workers/advisor/select-products/models.go
package selectproducts

import "protein-advisor/internal/models"

type Input struct {
	Intent  models.Intent  `json:"intent"`
	Persona models.Persona `json:"persona"`
}

type Output struct {
	Selection       models.SelectionResult `json:"selection"`
	ComparisonTable []models.ComparisonRow `json:"comparisonTable"`
	CatalogSource   string                 `json:"catalogSource"`
}
