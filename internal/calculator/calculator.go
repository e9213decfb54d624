// Package calculator deterministically recomputes category-dependent
// quantities, rates, markup, and totals. It is the only component allowed
// to produce numbers that feed accounting.
package calculator

import (
	"fmt"
	"math"

	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/model"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/parser"
)

// LaborRates caller-supplied labor configuration, immutable for one import.
type LaborRates struct {
	BillingRatePerHour    float64 `json:"billingRatePerHour"`
	ActualCostRatePerHour float64 `json:"actualCostRatePerHour"`
}

// Validate requires both rates to be positive.
func (r LaborRates) Validate() error {
	if r.BillingRatePerHour <= 0 {
		return fmt.Errorf("billingRatePerHour must be positive, got %v", r.BillingRatePerHour)
	}
	if r.ActualCostRatePerHour <= 0 {
		return fmt.Errorf("actualCostRatePerHour must be positive, got %v", r.ActualCostRatePerHour)
	}
	return nil
}

// Calculator applies category business rules and aggregates the summary.
type Calculator struct {
	rates LaborRates
}

// New creates a calculator for one import invocation.
func New(rates LaborRates) (*Calculator, error) {
	if err := rates.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{rates: rates}, nil
}

// categoryColumn which analyzer amount column backs each item category.
var categoryColumn = map[model.Category]parser.SemanticColumn{
	model.CategoryLaborInternal: parser.ColLabor,
	model.CategoryManagement:    parser.ColLabor,
	model.CategoryMaterials:     parser.ColMaterial,
	model.CategorySubcontractor: parser.ColSub,
}

// splitChild how an uncovered amount column materializes as a split item.
var splitChild = map[parser.SemanticColumn]struct {
	category model.Category
	suffix   string
}{
	parser.ColLabor:    {model.CategoryLaborInternal, " - Labor"},
	parser.ColMaterial: {model.CategoryMaterials, " - Materials"},
	parser.ColSub:      {model.CategorySubcontractor, " - Subcontractor"},
}

// Finalize applies category rules to every validated item and re-derives
// compound-row splits from the deterministic row analyses. The analyzer
// wins on conflict with the oracle: amounts come from the analyzed row
// whenever the item names its source row, and missing split children are
// emitted so each compound row's cost is fully represented.
func (c *Calculator) Finalize(items []model.ImportedLineItem, analyses []parser.RowAnalysis) []model.ImportedLineItem {
	byRow := make(map[int]parser.RowAnalysis, len(analyses))
	for _, a := range analyses {
		byRow[a.RowIndex] = a
	}

	// Which amount columns each source row already has an item for.
	covered := make(map[int]map[parser.SemanticColumn]bool)
	primaryOfRow := make(map[int]int) // row index -> index in items
	for i, item := range items {
		if item.SourceRow == nil {
			continue
		}
		row := *item.SourceRow
		if covered[row] == nil {
			covered[row] = make(map[parser.SemanticColumn]bool)
			primaryOfRow[row] = i
		}
		covered[row][categoryColumn[item.Category]] = true
	}

	out := make([]model.ImportedLineItem, 0, len(items))
	for i, item := range items {
		finalized := c.applyCategoryRules(item, byRow)
		out = append(out, finalized)

		// Emit missing split children right after the row's primary item.
		if item.SourceRow == nil || primaryOfRow[*item.SourceRow] != i {
			continue
		}
		analysis, ok := byRow[*item.SourceRow]
		if !ok || !analysis.NeedsSplit {
			continue
		}
		for _, col := range analysis.SplitColumns {
			if covered[*item.SourceRow][col] {
				continue
			}
			out = append(out, c.buildSplitChild(finalized, col, analysis))
		}
	}
	return out
}

// applyCategoryRules enforces the per-category invariants on one item.
func (c *Calculator) applyCategoryRules(item model.ImportedLineItem, byRow map[int]parser.RowAnalysis) model.ImportedLineItem {
	amount := c.rawAmount(item, byRow)

	switch item.Category {
	case model.CategoryManagement:
		// Own-labor management carries no markup.
		item.Quantity = 1
		item.Unit = model.UnitLumpSum
		item.MarkupPercent = 0
		item.CostPerUnit = amount
		item.LaborHours = nil

	case model.CategoryLaborInternal:
		// Payroll-linked: the billing rate always comes from configuration,
		// never from an externally suggested value.
		hours := model.RoundCents(amount / c.rates.BillingRatePerHour)
		item.Quantity = hours
		item.Unit = model.UnitHour
		item.CostPerUnit = c.rates.BillingRatePerHour
		item.LaborHours = &hours

	case model.CategorySubcontractor, model.CategoryMaterials:
		item.Quantity = 1
		item.Unit = model.UnitLumpSum
		item.CostPerUnit = amount
		item.LaborHours = nil
	}

	item.PricePerUnit = model.RoundCents(item.CostPerUnit * (1 + item.MarkupPercent/100))
	item.Total = model.RoundCents(item.Quantity * item.PricePerUnit)
	return item
}

// rawAmount the pre-markup dollar amount behind an item: the analyzed row's
// amount for the item's category column when the source row is known,
// otherwise the validated cost extended by quantity.
func (c *Calculator) rawAmount(item model.ImportedLineItem, byRow map[int]parser.RowAnalysis) float64 {
	if item.SourceRow != nil {
		if analysis, ok := byRow[*item.SourceRow]; ok {
			if amt := analysis.Amounts[categoryColumn[item.Category]]; amt > 0 {
				return amt
			}
		}
	}
	return model.RoundCents(item.CostPerUnit * item.Quantity)
}

func (c *Calculator) buildSplitChild(primary model.ImportedLineItem, col parser.SemanticColumn, analysis parser.RowAnalysis) model.ImportedLineItem {
	spec := splitChild[col]
	child := model.ImportedLineItem{
		Description:   primary.Description + spec.suffix,
		Category:      spec.category,
		Quantity:      1,
		Unit:          model.UnitLumpSum,
		CostPerUnit:   analysis.Amounts[col],
		MarkupPercent: primary.MarkupPercent,
		SourceRow:     primary.SourceRow,
		WasSplit:      true,
		SplitFrom:     primary.Description,
	}
	return c.applyCategoryRules(child, map[int]parser.RowAnalysis{analysis.RowIndex: analysis})
}

// Summarize aggregates the import summary and surfaces financial anomalies
// without correcting beyond the deterministic rules.
func (c *Calculator) Summarize(items []model.ImportedLineItem) model.ImportSummary {
	summary := model.ImportSummary{
		TotalLineItems:  len(items),
		CountByCategory: make(map[model.Category]int),
		Warnings:        []string{},
	}

	for _, item := range items {
		summary.TotalCost += item.Quantity * item.CostPerUnit
		summary.TotalPrice += item.Total
		summary.CountByCategory[item.Category]++
		if item.LaborHours != nil {
			summary.TotalLaborHours += *item.LaborHours
		}
	}
	summary.TotalCost = model.RoundCents(summary.TotalCost)
	summary.TotalPrice = model.RoundCents(summary.TotalPrice)
	summary.EstimatedLaborCushion = model.RoundCents(
		summary.TotalLaborHours * (c.rates.BillingRatePerHour - c.rates.ActualCostRatePerHour))

	if summary.TotalPrice < summary.TotalCost*0.9 && summary.TotalCost > 0 {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf(
			"markup appears inverted: total price $%.2f is below 90%% of total cost $%.2f",
			summary.TotalPrice, summary.TotalCost))
	}
	return summary
}

// SplitTotalsMatch checks that the split children of a source row sum back
// to the row's pre-split aggregate within tolerance.
func SplitTotalsMatch(children []model.ImportedLineItem, preSplitTotal float64) bool {
	var sum float64
	for _, c := range children {
		sum += c.Total
	}
	return math.Abs(sum-preSplitTotal) <= 0.01
}
