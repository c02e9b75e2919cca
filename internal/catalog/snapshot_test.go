package catalog

import (
	"testing"
	"time"

	"protein-advisor/internal/common/errors"
	"protein-advisor/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allColumns() []string {
	return append(append([]string{}, RequiredColumns...), ColImageURL, ColExternalURL)
}

func productRow(id, brand, status, pricePerKg, protein, serving, tags string) map[string]string {
	return map[string]string{
		ColProductID:         id,
		ColBrand:             brand,
		ColProductName:       brand + " " + id,
		ColPrice:             "4,980",
		ColPricePerKg:        pricePerKg,
		ColWeight:            "1",
		ColProteinPerServing: protein,
		ColServingSize:       serving,
		ColTags:              tags,
		ColStatus:            status,
		ColImageURL:          "https://img.example/" + id + ".png",
		ColExternalURL:       "https://shop.example/" + id,
	}
}

func sampleTable() *Table {
	return &Table{
		Columns: allColumns(),
		Rows: []map[string]string{
			productRow("BA001", "BrandA", "active", "3000", "21", "30", "#bulk-up #tasty"),
			productRow("BA002", "BrandA", "inactive", "2000", "20", "30", ""),
			productRow("BB001", "BrandB", " Active ", "¥2,500", "19.5", "30", "#diet,#flavor-variety"),
			productRow("BC001", "BrandC", "active", "", "20", "0", ""),
			productRow("BA001", "BrandA", "active", "1000", "25", "30", ""),
		},
	}
}

func TestBuildSnapshot_ActiveRowsInNaturalOrder(t *testing.T) {
	cat, err := BuildSnapshot(sampleTable(), "sheets", time.UnixMilli(1000), logger.NewTestLogger(t))
	require.NoError(t, err)

	require.Equal(t, 3, cat.Len())
	assert.Equal(t, "BA001", cat.Products[0].ID)
	assert.Equal(t, "BB001", cat.Products[1].ID)
	assert.Equal(t, "BC001", cat.Products[2].ID)
	assert.Equal(t, int64(1000), cat.LoadedAt)
	assert.Equal(t, "sheets", cat.Source)

	// first duplicate wins
	p, ok := cat.ByID("BA001")
	require.True(t, ok)
	assert.InDelta(t, 3000, *p.PricePerKg, 0.001)
}

func TestBuildSnapshot_ParsesNumbersAndTags(t *testing.T) {
	cat, err := BuildSnapshot(sampleTable(), "sheets", time.Now(), logger.NewNoOpLogger())
	require.NoError(t, err)

	bb, _ := cat.ByID("BB001")
	require.NotNil(t, bb.PricePerKg)
	assert.InDelta(t, 2500, *bb.PricePerKg, 0.001)
	assert.InDelta(t, 4980, *bb.Price, 0.001)
	assert.Equal(t, []string{"#diet", "#flavor-variety"}, bb.Tags)
	require.NotNil(t, bb.Purity)
	assert.InDelta(t, 65, *bb.Purity, 0.001)

	bc, _ := cat.ByID("BC001")
	assert.Nil(t, bc.PricePerKg, "blank cell stays missing")
	assert.Nil(t, bc.Purity, "zero serving size leaves purity undefined")
	assert.Nil(t, bc.Tags)
}

func TestBuildSnapshot_Errors(t *testing.T) {
	t.Run("no rows", func(t *testing.T) {
		_, err := BuildSnapshot(&Table{Columns: allColumns()}, "sheets", time.Now(), logger.NewNoOpLogger())
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeCatalogEmpty, errors.CodeOf(err))
	})

	t.Run("nil table", func(t *testing.T) {
		_, err := BuildSnapshot(nil, "sheets", time.Now(), logger.NewNoOpLogger())
		assert.Equal(t, errors.ErrCodeCatalogEmpty, errors.CodeOf(err))
	})

	t.Run("missing serving size column", func(t *testing.T) {
		table := sampleTable()
		var cols []string
		for _, c := range table.Columns {
			if c != ColServingSize {
				cols = append(cols, c)
			}
		}
		table.Columns = cols

		_, err := BuildSnapshot(table, "sheets", time.Now(), logger.NewNoOpLogger())
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeCatalogSchemaInvalid, errors.CodeOf(err))
		assert.Contains(t, err.(*errors.StandardError).Details, ColServingSize)
	})

	t.Run("display columns are optional", func(t *testing.T) {
		table := sampleTable()
		table.Columns = append([]string{}, RequiredColumns...)
		_, err := BuildSnapshot(table, "sheets", time.Now(), logger.NewNoOpLogger())
		assert.NoError(t, err)
	})
}

func TestBuildSnapshot_NoActiveRowsIsValidEmptySnapshot(t *testing.T) {
	table := &Table{
		Columns: allColumns(),
		Rows:    []map[string]string{productRow("X1", "BrandX", "discontinued", "1", "1", "1", "")},
	}
	cat, err := BuildSnapshot(table, "sheets", time.Now(), logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, cat.Len())
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"", nil},
		{"  ", nil},
		{"abc", nil},
		{"NaN", nil},
		{"1,200", ptr(1200)},
		{"¥3,000", ptr(3000)},
		{"70%", ptr(70)},
		{"0.75", ptr(0.75)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parseNumber(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func ptr(v float64) *float64 { return &v }
