package llm

import (
	"slices"

	"protein-advisor/internal/models"
)

// Tip identifiers.
const (
	TipGeneral        = "general"
	TipBulkUp         = "for-bulk-up"
	TipDiet           = "for-diet"
	TipPrice          = "price"
	TipTaste          = "taste"
	TipProteinQuality = "protein-quality"
)

type NutritionTip struct {
	Title string
	Text  string
}

var nutritionTips = map[string]NutritionTip{
	TipGeneral: {
		Title: "General daily protein intake",
		Text: "A common guideline for staying healthy is about 1.0 g of protein per kg of body weight per day. " +
			"Someone weighing 65 kg needs roughly 65 g a day; if a meal provides 20 g, a shake is an easy way to cover the rest.",
	},
	TipBulkUp: {
		Title: "For building muscle",
		Text: "People training seriously are usually advised to take about 2.0 g of protein per kg of body weight. " +
			"At 70 kg that is 140 g a day, which is hard to reach from meals alone, so a post-workout shake helps a lot.",
	},
	TipDiet: {
		Title: "For dieting and toning",
		Text: "While dieting, about 1.2 g of protein per kg of body weight helps keep muscle. " +
			"At 55 kg that is around 66 g a day, and protein also keeps you feeling full.",
	},
	TipPrice: {
		Title: "On cost per kilogram",
		Text: "Protein prices depend heavily on package size. A 3 kg or 5 kg bag usually costs far less per kilogram than a 1 kg bag, " +
			"so once you find a favourite it is worth checking the larger size.",
	},
	TipTaste: {
		Title: "On taste",
		Text: "Taste depends on the base as much as the flavour. Whey is creamy and easy to drink, soy is plainer and more filling, " +
			"so switching the base can help if a flavour does not suit you.",
	},
	TipProteinQuality: {
		Title: "On protein content",
		Text: "Whey comes mainly as WPC and WPI. WPI is filtered further to remove fat and lactose, so its protein ratio is higher " +
			"and it is gentler on the stomach, at a somewhat higher price.",
	},
}

var (
	bulkUpTags = []string{"#増量", "#バルクアップ", "#bulk-up"}
	dietTags   = []string{"#減量", "#ダイエット", "#引き締め", "#diet"}
)

// TipFor picks the nutrition tip for an intent. Bulk-up and diet tags take
// precedence over the key metric.
func TipFor(intent models.Intent) NutritionTip {
	id := TipGeneral
	switch intent.KeyMetric {
	case models.MetricPrice:
		id = TipPrice
	case models.MetricTaste:
		id = TipTaste
	case models.MetricProteinQuality:
		id = TipProteinQuality
	}

	switch {
	case containsAny(intent.RelevantTags, bulkUpTags):
		id = TipBulkUp
	case containsAny(intent.RelevantTags, dietTags):
		id = TipDiet
	}
	return nutritionTips[id]
}

func containsAny(have, want []string) bool {
	return slices.ContainsFunc(have, func(tag string) bool {
		return slices.Contains(want, tag)
	})
}
