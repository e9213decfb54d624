package parser

// costColumns the amount columns a single row can spread its cost across,
// in the order split children are emitted.
var costColumns = []SemanticColumn{ColLabor, ColMaterial, ColSub}

// CompoundRowAnalyzer flags rows that carry amounts in more than one cost
// category. Its output is a hint to the classification oracle; on conflict
// the analyzer wins because it is fully deterministic.
type CompoundRowAnalyzer struct {
	mapping ColumnMapping
}

// NewCompoundRowAnalyzer creates an analyzer bound to a resolved column mapping.
func NewCompoundRowAnalyzer(mapping ColumnMapping) *CompoundRowAnalyzer {
	return &CompoundRowAnalyzer{mapping: mapping}
}

// Analyze reads the labor/material/sub amounts of every data row and marks
// NeedsSplit when more than one category is strictly positive.
func (a *CompoundRowAnalyzer) Analyze(rows []RawRow) []RowAnalysis {
	analyses := make([]RowAnalysis, 0, len(rows))
	for i, row := range rows {
		analyses = append(analyses, a.analyzeRow(i, row))
	}
	return analyses
}

func (a *CompoundRowAnalyzer) analyzeRow(index int, row RawRow) RowAnalysis {
	analysis := RowAnalysis{
		RowIndex: index,
		Amounts:  make(map[SemanticColumn]float64, len(costColumns)),
	}

	for _, col := range costColumns {
		idx, ok := a.mapping[col]
		if !ok || idx < 0 || idx >= len(row) {
			continue
		}
		amount := ParseCurrency(row[idx])
		analysis.Amounts[col] = amount
		if amount > 0 {
			analysis.SplitColumns = append(analysis.SplitColumns, col)
		}
	}

	analysis.NeedsSplit = len(analysis.SplitColumns) > 1
	if !analysis.NeedsSplit {
		analysis.SplitColumns = nil
	}
	return analysis
}
