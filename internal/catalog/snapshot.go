// Package catalog loads product rows from a tabular source and turns them
// into the read-only snapshot every session selects from.
package catalog

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"protein-advisor/internal/common/errors"
	"protein-advisor/internal/common/logger"
	"protein-advisor/internal/models"
)

// Column headers of the product sheet.
const (
	ColProductID         = "ProductID"
	ColBrand             = "Brand"
	ColProductName       = "ProductName"
	ColPrice             = "Price(JPY)"
	ColPricePerKg        = "PricePerKg(JPY)"
	ColWeight            = "WeightInKg"
	ColProteinPerServing = "ProteinPerServing(g)"
	ColServingSize       = "ServingSize(g)"
	ColTags              = "PersonaTags"
	ColStatus            = "Status"
	ColImageURL          = "ImageURL"
	ColExternalURL       = "AmazonURL"
)

const StatusActive = "active"

// RequiredColumns must all be present in the header. Image and link columns
// are display-only and may be absent.
var RequiredColumns = []string{
	ColProductID,
	ColBrand,
	ColProductName,
	ColPrice,
	ColPricePerKg,
	ColWeight,
	ColProteinPerServing,
	ColServingSize,
	ColTags,
	ColStatus,
}

// Table is the raw tabular payload a Source returns. Rows are keyed by header;
// a cell missing from a row reads as blank.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// Source reads the raw product table.
type Source interface {
	Name() string
	FetchTable(ctx context.Context) (*Table, error)
}

// Store hands out the current snapshot.
type Store interface {
	Snapshot(ctx context.Context) (*models.Catalog, error)
}

// BuildSnapshot validates the table and converts its active rows into a
// catalog, in the table's natural row order.
func BuildSnapshot(table *Table, source string, loadedAt time.Time, log logger.Logger) (*models.Catalog, error) {
	if table == nil || len(table.Rows) == 0 {
		return nil, errors.NewCatalogEmptyError(source)
	}
	if missing := missingColumns(table.Columns); len(missing) > 0 {
		return nil, errors.NewCatalogSchemaInvalidError(missing)
	}

	products := make([]models.Product, 0, len(table.Rows))
	seen := make(map[string]bool, len(table.Rows))
	for i, row := range table.Rows {
		if !strings.EqualFold(strings.TrimSpace(row[ColStatus]), StatusActive) {
			continue
		}
		id := strings.TrimSpace(row[ColProductID])
		if id == "" {
			log.Warn("skipping active row without product id", map[string]interface{}{"row": i + 2})
			continue
		}
		if seen[id] {
			log.Warn("duplicate product id, keeping first row", map[string]interface{}{"productId": id, "row": i + 2})
			continue
		}
		seen[id] = true

		products = append(products, models.Product{
			ID:                id,
			Brand:             strings.TrimSpace(row[ColBrand]),
			Name:              strings.TrimSpace(row[ColProductName]),
			Price:             parseNumber(row[ColPrice]),
			PricePerKg:        parseNumber(row[ColPricePerKg]),
			WeightKg:          parseNumber(row[ColWeight]),
			ProteinPerServing: parseNumber(row[ColProteinPerServing]),
			ServingSize:       parseNumber(row[ColServingSize]),
			Tags:              splitTags(row[ColTags]),
			ImageURL:          strings.TrimSpace(row[ColImageURL]),
			ExternalURL:       strings.TrimSpace(row[ColExternalURL]),
		})
	}

	ApplyDerivedMetrics(products)
	return models.NewCatalog(products, source, loadedAt.UnixMilli()), nil
}

// ApplyDerivedMetrics sets purity = protein per serving / serving size * 100.
// Purity stays nil when either input is missing or the serving size is not positive.
func ApplyDerivedMetrics(products []models.Product) {
	for i := range products {
		p := &products[i]
		p.Purity = nil
		if p.ProteinPerServing == nil || p.ServingSize == nil || *p.ServingSize <= 0 {
			continue
		}
		purity := *p.ProteinPerServing / *p.ServingSize * 100
		p.Purity = &purity
	}
}

func missingColumns(columns []string) []string {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[strings.TrimSpace(c)] = true
	}
	var missing []string
	for _, c := range RequiredColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	sort.Strings(missing)
	return missing
}

var numberReplacer = strings.NewReplacer(",", "", "¥", "", "￥", "", "円", "", "%", "")

// parseNumber is lenient: blank or unparsable cells become nil.
func parseNumber(raw string) *float64 {
	s := strings.TrimSpace(numberReplacer.Replace(raw))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func splitTags(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		switch r {
		case ',', '、', ' ', '\t', '\n', '\r', '　':
			return true
		}
		return false
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}
