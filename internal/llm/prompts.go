package llm

import (
	"fmt"
	"strconv"
	"strings"

	"protein-advisor/internal/models"
)

const (
	userLabel      = "you"
	assistantLabel = "AI concierge"
	notAvailable   = "N/A"
)

// FormatPersona renders the diagnosis answers as a profile block.
func FormatPersona(p models.Persona) string {
	var b strings.Builder
	b.WriteString("[User profile]\n")
	if p.Experience != "" {
		fmt.Fprintf(&b, "- Experience: %s\n", p.Experience)
	}
	if p.CurrentBrand != "" {
		fmt.Fprintf(&b, "- Current brand: %s\n", p.CurrentBrand)
	}
	if p.Purpose != "" {
		fmt.Fprintf(&b, "- Purpose: %s\n", p.Purpose)
	}
	if enabled := p.EnabledPriorities(); len(enabled) > 0 {
		names := make([]string, len(enabled))
		for i, pr := range enabled {
			names[i] = string(pr)
		}
		fmt.Fprintf(&b, "- Priorities: %s\n", strings.Join(names, ", "))
	}
	return b.String()
}

// FirstTurnPrompt prefixes the opening message with the persona so the model
// sees the profile once; later turns carry only the user's text.
func FirstTurnPrompt(p models.Persona, userText string) string {
	return fmt.Sprintf("%s\n**What would make the user switch:**\n%s", FormatPersona(p), userText)
}

// FormatHistory renders the turn log oldest first.
func FormatHistory(turns []models.Turn) string {
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		label := assistantLabel
		if t.Role == models.RoleUser {
			label = userLabel
		}
		parts = append(parts, fmt.Sprintf("%s: %s", label, t.Text))
	}
	return strings.Join(parts, "\n\n")
}

// FormatBaseline includes the metric value only when the selection ranked on
// a numeric column.
func FormatBaseline(res models.SelectionResult) string {
	if res.Baseline == nil {
		return notAvailable
	}
	base := fmt.Sprintf("Brand: %s, representative product: %s", res.Baseline.Brand, res.Baseline.Name)
	if res.MetricColumn == models.ColumnNone {
		return base
	}
	value, ok := res.MetricColumn.MetricValue(res.Baseline)
	if !ok {
		return base + fmt.Sprintf(", %s: unknown", res.MetricLabel)
	}
	return base + fmt.Sprintf(", %s: %s", res.MetricLabel, formatMetric(value, res.MetricColumn))
}

var tableHeader = []string{
	"ProductID", "Brand", "ProductName", "Price(JPY)", "PricePerKg(JPY)",
	"WeightInKg", "ProteinPerServing(g)", "ServingSize(g)", "ProteinPurity(%)", "PersonaTags",
}

// FormatProductsTable renders the candidates as a markdown table.
func FormatProductsTable(products []models.Product) string {
	if len(products) == 0 {
		return "(no matching products)"
	}
	var b strings.Builder
	b.WriteString("| " + strings.Join(tableHeader, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(tableHeader)) + "\n")
	for _, p := range products {
		cells := []string{
			p.ID, p.Brand, p.Name,
			formatOptional(p.Price, 0), formatOptional(p.PricePerKg, 0),
			formatOptional(p.WeightKg, -1), formatOptional(p.ProteinPerServing, -1),
			formatOptional(p.ServingSize, -1), formatOptional(p.Purity, 1),
			strings.Join(p.Tags, " "),
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return b.String()
}

const classifierInstructions = `You analyse what a protein shopper wants. Read the profile and conversation and reply with JSON only:
{"key_metric": "...", "relevant_tags": ["..."], "user_desire_summary": "..."}
key_metric is one of "protein-quality", "price", "taste", "other".
relevant_tags lists catalog tags (for example "#chocolate", "#tasty", "#diet", "#bulk-up") the user cares about; use it for taste requests.
user_desire_summary is one short sentence.`

// BuildClassifierPrompt asks for the structured intent of the latest turn.
func BuildClassifierPrompt(conversation string) string {
	return classifierInstructions + "\n\n# User request:\n" + conversation
}

// WriterInput is everything the composer prompt is filled from.
type WriterInput struct {
	UserPrompt    string
	DesireSummary string
	Selection     models.SelectionResult
	History       []models.Turn
	NutritionTip  string
}

// BuildWriterPrompt lays out the sales-copy prompt.
func BuildWriterPrompt(in WriterInput) string {
	var parts []string

	parts = append(parts, "You are a friendly protein concierge. Recommend the selected products to the user, comparing them with the product they use today.")
	parts = append(parts, "\nUser request:\n"+in.UserPrompt)
	parts = append(parts, "\nWhat the user wants: "+in.DesireSummary)
	parts = append(parts, fmt.Sprintf("Selection criterion: %s (chosen for %s)", in.Selection.MetricLabel, in.Selection.Reason))
	parts = append(parts, "\nCurrent product:\n"+FormatBaseline(in.Selection))
	parts = append(parts, "\nSelected products:\n"+FormatProductsTable(in.Selection.Candidates))

	if history := FormatHistory(in.History); history != "" {
		parts = append(parts, "\nConversation so far:\n"+history)
	}
	if in.NutritionTip != "" {
		parts = append(parts, "\nWeave in this nutrition tip naturally:\n"+in.NutritionTip)
	}

	parts = append(parts, "\nInstructions:")
	parts = append(parts, "- Only use facts from the table above")
	parts = append(parts, "- After introducing a product, add its marker on its own line, e.g. <!-- ID: AB123 -->")
	parts = append(parts, "- If no products were selected, give general advice and do not invent products")
	parts = append(parts, "- Reply in the user's language")
	parts = append(parts, "- End with three short follow-up questions the user might ask, one per line, between [suggestions] and [/suggestions]")

	return strings.Join(parts, "\n")
}

func formatMetric(v float64, column models.MetricColumn) string {
	if column == models.ColumnPurity {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', 0, 64)
}

func formatOptional(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}
