package selector

import (
	"fmt"
	"math/rand"
	"testing"

	"protein-advisor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================================
// Fixtures
// ==========================================

func f(v float64) *float64 { return &v }

func product(id, brand string, purity, pricePerKg *float64, tags ...string) models.Product {
	return models.Product{
		ID:         id,
		Brand:      brand,
		Name:       brand + " " + id,
		Purity:     purity,
		PricePerKg: pricePerKg,
		Tags:       tags,
	}
}

func ids(products []models.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func intent(metric models.KeyMetric, tags ...string) models.Intent {
	return models.Intent{KeyMetric: metric, RelevantTags: tags, DesireSummary: "test"}
}

func newUser() models.Persona {
	p := models.DefaultPersona()
	p.Experience = models.ExperienceNew
	return p
}

func returning(brand, productID string) models.Persona {
	p := models.DefaultPersona()
	p.CurrentBrand = brand
	p.BaselineProductID = productID
	return p
}

func scenarioCatalog() *models.Catalog {
	return models.NewCatalog([]models.Product{
		product("BA001", "BrandA", f(70), f(3000)),
		product("BB001", "BrandB", f(60), f(2000)),
		product("BC001", "BrandC", f(65), f(2500)),
	}, "test", 0)
}

// ==========================================
// Baseline resolution
// ==========================================

func TestResolveBaseline(t *testing.T) {
	cat := models.NewCatalog([]models.Product{
		product("BA001", "BrandA", f(70), f(3000)),
		product("BA002", "BrandA", f(72), f(3100)),
		product("BB001", "BrandB", f(60), f(2000)),
	}, "test", 0)

	tests := []struct {
		name    string
		persona models.Persona
		want    string
	}{
		{"product id wins", returning("BrandA", "BA002"), "BA002"},
		{"unknown id falls back to brand", returning("BrandA", "ZZ999"), "BA001"},
		{"brand only takes first row", returning("BrandB", ""), "BB001"},
		{"unknown brand", returning("BrandX", ""), ""},
		{"new user", newUser(), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveBaseline(tt.persona, cat)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

func TestResolveBaseline_EmptyCatalog(t *testing.T) {
	assert.Nil(t, ResolveBaseline(returning("BrandA", "BA001"), nil))
	assert.Nil(t, ResolveBaseline(returning("BrandA", "BA001"), models.NewCatalog(nil, "test", 0)))
}

// ==========================================
// Ranking branches
// ==========================================

func TestSelect_PriceScenario(t *testing.T) {
	res := Select(scenarioCatalog(), intent(models.MetricPrice), returning("BrandA", "BA001"))

	require.NotNil(t, res.Baseline)
	assert.Equal(t, "BA001", res.Baseline.ID)
	assert.Equal(t, []string{"BB001", "BC001"}, ids(res.Candidates))
	assert.Equal(t, LabelPrice, res.MetricLabel)
	assert.Equal(t, models.ColumnPrice, res.MetricColumn)
	assert.Equal(t, ReasonPrice, res.Reason)
}

func TestSelect_ProteinQualityDescendingSkipsUndefinedPurity(t *testing.T) {
	cat := models.NewCatalog([]models.Product{
		product("P1", "A", nil, f(1000)),
		product("P2", "A", f(80), f(5000)),
		product("P3", "B", f(90), f(6000)),
		product("P4", "C", f(85), f(4000)),
	}, "test", 0)

	res := Select(cat, intent(models.MetricProteinQuality), newUser())
	assert.Equal(t, []string{"P3", "P4"}, ids(res.Candidates))
	assert.Equal(t, LabelPurity, res.MetricLabel)
	assert.Equal(t, models.ColumnPurity, res.MetricColumn)
	assert.Nil(t, res.Baseline)
}

func TestSelect_OtherUsesPurityRanking(t *testing.T) {
	res := Select(scenarioCatalog(), intent(models.MetricOther), newUser())
	assert.Equal(t, []string{"BA001", "BC001"}, ids(res.Candidates))
	assert.Equal(t, ReasonQuality, res.Reason)
	assert.Equal(t, models.MetricOther, res.KeyMetric)
}

func TestSelect_TiesKeepCatalogOrder(t *testing.T) {
	cat := models.NewCatalog([]models.Product{
		product("T1", "A", f(70), f(2000)),
		product("T2", "B", f(70), f(2000)),
		product("T3", "C", f(70), f(2000)),
	}, "test", 0)

	assert.Equal(t, []string{"T1", "T2"}, ids(Select(cat, intent(models.MetricPrice), newUser()).Candidates))
	assert.Equal(t, []string{"T1", "T2"}, ids(Select(cat, intent(models.MetricProteinQuality), newUser()).Candidates))
}

func TestSelect_NeverPads(t *testing.T) {
	cat := models.NewCatalog([]models.Product{
		product("ONLY", "A", f(70), f(2000)),
		product("BASE", "B", f(75), f(2100)),
	}, "test", 0)

	res := Select(cat, intent(models.MetricPrice), returning("B", "BASE"))
	assert.Equal(t, []string{"ONLY"}, ids(res.Candidates))

	res = Select(models.NewCatalog(cat.Products[1:], "test", 0), intent(models.MetricPrice), returning("B", "BASE"))
	assert.Empty(t, res.Candidates)
	assert.NotNil(t, res.Candidates)
}

func TestSelect_EmptyCatalog(t *testing.T) {
	for _, metric := range []models.KeyMetric{models.MetricPrice, models.MetricTaste, models.MetricProteinQuality, models.MetricOther} {
		t.Run(string(metric), func(t *testing.T) {
			res := Select(models.NewCatalog(nil, "test", 0), intent(metric, "#tasty"), returning("BrandA", "BA001"))
			assert.Empty(t, res.Candidates)
			assert.Nil(t, res.Baseline)
		})
	}
	assert.NotPanics(t, func() { Select(nil, intent(models.MetricPrice), newUser()) })
}

// ==========================================
// Taste branch
// ==========================================

func tasteCatalog() *models.Catalog {
	return models.NewCatalog([]models.Product{
		product("C1", "A", f(70), f(3000), "#chocolate"),
		product("M1", "B", f(75), f(2600), "#matcha", "#tasty"),
		product("C2", "C", f(72), f(2800), "#chocolate", "#flavor-variety"),
		product("X1", "D", f(90), f(1800)),
		product("C3", "E", f(65), f(2400), "#chocolate"),
	}, "test", 0)
}

func TestSelect_Taste(t *testing.T) {
	tests := []struct {
		name    string
		tags    []string
		persona models.Persona
		want    []string
	}{
		{"two or more matches take the first two in catalog order", []string{"#chocolate"}, newUser(), []string{"C1", "C2"}},
		{"one match pairs with the cheapest remaining product", []string{"#matcha"}, newUser(), []string{"M1", "X1"}},
		{"no match uses default taste tags", []string{"#strawberry"}, newUser(), []string{"M1", "C2"}},
		{"no tags uses default taste tags", nil, newUser(), []string{"M1", "C2"}},
		{"baseline among matches is replaced", []string{"#chocolate"}, returning("A", "C1"), []string{"C2", "C3"}},
		{"baseline is never the cheapest pairing", []string{"#matcha"}, returning("D", "X1"), []string{"M1", "C3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Select(tasteCatalog(), intent(models.MetricTaste, tt.tags...), tt.persona)
			assert.Equal(t, tt.want, ids(res.Candidates))
			assert.Equal(t, LabelTaste, res.MetricLabel)
			assert.Equal(t, models.ColumnNone, res.MetricColumn)
			assert.Equal(t, ReasonTaste, res.Reason)
		})
	}
}

func TestSelect_TasteFallsBackToPurity(t *testing.T) {
	cat := models.NewCatalog([]models.Product{
		product("A1", "A", f(70), f(3000), "#tasty"),
		product("B1", "B", f(80), f(2600)),
		product("C1", "C", f(90), f(2800)),
	}, "test", 0)

	res := Select(cat, intent(models.MetricTaste, "#strawberry"), newUser())
	assert.Equal(t, []string{"C1", "B1"}, ids(res.Candidates))
}

// ==========================================
// Properties
// ==========================================

func randomCatalog(r *rand.Rand, n int) *models.Catalog {
	tagPool := []string{"#tasty", "#chocolate", "#diet", "#bulk-up", "#flavor-variety"}
	products := make([]models.Product, n)
	for i := range products {
		var purity, price *float64
		if r.Intn(5) > 0 {
			purity = f(float64(50 + r.Intn(40)))
		}
		if r.Intn(5) > 0 {
			price = f(float64(1500 + r.Intn(3000)))
		}
		var tags []string
		for _, tag := range tagPool {
			if r.Intn(3) == 0 {
				tags = append(tags, tag)
			}
		}
		products[i] = product(fmt.Sprintf("P%03d", i), fmt.Sprintf("Brand%d", r.Intn(4)), purity, price, tags...)
	}
	return models.NewCatalog(products, "random", 0)
}

func TestSelect_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	metrics := []models.KeyMetric{models.MetricProteinQuality, models.MetricPrice, models.MetricTaste, models.MetricOther}

	for iter := 0; iter < 300; iter++ {
		cat := randomCatalog(r, 3+r.Intn(10))
		base := cat.Products[r.Intn(cat.Len())]
		persona := returning(base.Brand, base.ID)
		in := intent(metrics[r.Intn(len(metrics))], "#chocolate")

		res := Select(cat, in, persona)
		again := Select(cat, in, persona)

		require.NotNil(t, res.Baseline)
		assert.Equal(t, ids(res.Candidates), ids(again.Candidates), "deterministic")
		assert.LessOrEqual(t, len(res.Candidates), MaxCandidates)

		seen := map[string]bool{}
		for _, c := range res.Candidates {
			assert.NotEqual(t, res.Baseline.ID, c.ID, "baseline excluded")
			assert.False(t, seen[c.ID], "unique candidates")
			seen[c.ID] = true
		}

		switch in.KeyMetric {
		case models.MetricProteinQuality:
			for i := 1; i < len(res.Candidates); i++ {
				assert.GreaterOrEqual(t, *res.Candidates[i-1].Purity, *res.Candidates[i].Purity)
			}
		case models.MetricPrice:
			for i := 1; i < len(res.Candidates); i++ {
				assert.LessOrEqual(t, *res.Candidates[i-1].PricePerKg, *res.Candidates[i].PricePerKg)
			}
		}
	}
}

func TestSelect_DoesNotMutateCatalog(t *testing.T) {
	cat := scenarioCatalog()
	before := ids(cat.Products)
	_ = Select(cat, intent(models.MetricPrice), newUser())
	assert.Equal(t, before, ids(cat.Products))
}
