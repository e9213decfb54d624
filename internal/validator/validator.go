// Package validator enforces the line-item schema against the classification
// oracle's output. This is the single place financial trust boundaries are
// enforced: invalid candidates are dropped with a warning, never guessed
// into validity, and supplied totals are recomputed whenever they diverge
// from the deterministic invariants.
package validator

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/model"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/oracle"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/parser"
)

const (
	// pricePerUnitTolerance rounding slack for a supplied price per unit.
	pricePerUnitTolerance = 0.01
	// totalTolerance absolute slack before a supplied total is recomputed.
	totalTolerance = 1.0
)

// Result outcome of validating one candidate.
type Result struct {
	Valid  bool
	Errors []string
	Fixed  *model.ImportedLineItem
}

// ValidateAll validates every candidate in order. Invalid candidates are
// dropped and contribute one warning each, citing the candidate's 0-based
// index.
func ValidateAll(candidates []oracle.Candidate) ([]model.ImportedLineItem, []string) {
	items := make([]model.ImportedLineItem, 0, len(candidates))
	var warnings []string

	for i, c := range candidates {
		res := Validate(c, i)
		if !res.Valid {
			warnings = append(warnings, fmt.Sprintf("item %d rejected: %s", i, strings.Join(res.Errors, "; ")))
			continue
		}
		items = append(items, *res.Fixed)
	}
	return items, warnings
}

// Validate checks one candidate against the line-item schema, coercing
// loose numerics and repairing derived values.
func Validate(c oracle.Candidate, index int) Result {
	var errs []string

	description := strings.TrimSpace(c.Description)
	if description == "" {
		errs = append(errs, "description is required")
	}

	category := model.Category(strings.ToLower(strings.TrimSpace(c.Category)))
	if !category.Valid() {
		errs = append(errs, fmt.Sprintf("category %q is not one of labor_internal, subcontractor, materials, management", c.Category))
	}

	quantity, _, ok := toFloat(c.Quantity)
	if !ok {
		errs = append(errs, fmt.Sprintf("quantity %v is not numeric", c.Quantity))
	} else if quantity < 0 {
		errs = append(errs, fmt.Sprintf("quantity %v is negative", quantity))
	}

	costPerUnit, _, ok := toFloat(c.CostPerUnit)
	if !ok {
		errs = append(errs, fmt.Sprintf("costPerUnit %v is not numeric", c.CostPerUnit))
	} else if costPerUnit < 0 {
		errs = append(errs, fmt.Sprintf("costPerUnit %v is negative", costPerUnit))
	}

	markupPercent, _, ok := toFloat(c.MarkupPercent)
	if !ok {
		errs = append(errs, fmt.Sprintf("markupPercent %v is not numeric", c.MarkupPercent))
	}

	if len(errs) > 0 {
		return Result{Valid: false, Errors: errs}
	}

	unit := model.Unit(strings.ToUpper(strings.TrimSpace(c.Unit)))
	if !unit.Valid() {
		unit = model.UnitLumpSum
	}

	// Derived values are never trusted blindly: recompute whenever the
	// supplied value is absent or beyond tolerance.
	pricePerUnit := model.RoundCents(costPerUnit * (1 + markupPercent/100))
	if supplied, present, ok := toFloat(c.PricePerUnit); ok && present {
		if math.Abs(supplied-pricePerUnit) <= pricePerUnitTolerance {
			pricePerUnit = supplied
		}
	}

	total := model.RoundCents(quantity * pricePerUnit)
	if supplied, present, ok := toFloat(c.Total); ok && present {
		if math.Abs(supplied-total) <= totalTolerance {
			total = supplied
		}
	}

	item := &model.ImportedLineItem{
		Description:   description,
		Category:      category,
		Quantity:      quantity,
		Unit:          unit,
		CostPerUnit:   costPerUnit,
		MarkupPercent: markupPercent,
		PricePerUnit:  pricePerUnit,
		Total:         total,
	}

	if hours, present, ok := toFloat(c.LaborHours); ok && present {
		item.LaborHours = &hours
	}
	if rowF, present, ok := toFloat(c.SourceRow); ok && present && rowF >= 0 && rowF == math.Trunc(rowF) {
		row := int(rowF)
		item.SourceRow = &row
	}

	return Result{Valid: true, Fixed: item}
}

// toFloat coerces a loosely typed oracle value. Returns the value, whether
// a value was present at all, and whether coercion succeeded. Absent values
// coerce to 0 (the currency-parse convention), so ok is true with
// present false.
func toFloat(v any) (float64, bool, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false, true
	case float64:
		return t, true, true
	case float32:
		return float64(t), true, true
	case int:
		return float64(t), true, true
	case int64:
		return float64(t), true, true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, true, false
		}
		return f, true, true
	case string:
		if strings.TrimSpace(t) == "" {
			return 0, false, true
		}
		f, ok := parser.ParseNumber(t)
		if !ok {
			return 0, true, false
		}
		return f, true, true
	default:
		return 0, true, false
	}
}
