package parser

import "strings"

const (
	// maxHeaderScanRows bounds the header search so detection never wanders
	// into unrelated sheet content.
	maxHeaderScanRows = 20

	// minHeaderSignals distinct alias matches a row needs to count as a
	// header candidate at all.
	minHeaderSignals = 3
)

// columnAliases recognized spellings per semantic column, normalized form.
// Exact matches are tried before substring matches, and columns claim cells
// in RequiredColumns order, so "subcontractor" can never lose its cell to
// the shorter "sub" alias.
var columnAliases = map[SemanticColumn][]string{
	ColItem:          {"item", "description", "scope of work", "scope", "task", "work item"},
	ColSubcontractor: {"subcontractor", "vendor", "sub name", "company"},
	ColLabor:         {"labor", "labour"},
	ColMaterial:      {"material", "materials"},
	ColSub:           {"sub", "subs", "sub cost", "subcontract"},
	ColTotal:         {"total", "amount"},
	ColMarkup:        {"markup", "mark-up", "mark up", "margin"},
}

// ColumnMapper locates the budget-sheet header row and resolves the index
// of every required semantic column.
type ColumnMapper struct{}

// NewColumnMapper creates a column mapper.
func NewColumnMapper() *ColumnMapper {
	return &ColumnMapper{}
}

// DetectColumns scans the first rows for a header row whose cells resolve
// every required semantic column. Fails closed: when any required column is
// unresolved the result carries Recognized=false and the missing column
// names; callers must not guess positions.
func (m *ColumnMapper) DetectColumns(rows []RawRow) FormatDetectionResult {
	best := FormatDetectionResult{
		Recognized:     false,
		HeaderRowIndex: -1,
		MissingColumns: columnNames(RequiredColumns),
	}

	scanned := 0
	for i, row := range rows {
		if isBlankRow(row) {
			continue
		}
		scanned++
		if scanned > maxHeaderScanRows {
			break
		}

		mapping, missing := m.matchHeaderRow(row)
		matched := len(RequiredColumns) - len(missing)
		if matched < minHeaderSignals {
			continue
		}

		confidence := float64(matched) / float64(len(RequiredColumns))
		if len(missing) == 0 {
			return FormatDetectionResult{
				Recognized:     true,
				Confidence:     confidence,
				HeaderRowIndex: i,
				Mapping:        mapping,
			}
		}

		if confidence > best.Confidence {
			best = FormatDetectionResult{
				Recognized:     false,
				Confidence:     confidence,
				HeaderRowIndex: -1,
				MissingColumns: missing,
			}
		}
	}

	return best
}

// matchHeaderRow resolves semantic columns against one candidate header row.
// Each cell is claimed by at most one semantic column.
func (m *ColumnMapper) matchHeaderRow(row RawRow) (ColumnMapping, []string) {
	normalized := make([]string, len(row))
	for i, cell := range row {
		normalized[i] = NormalizeHeaderCell(cell)
	}

	mapping := make(ColumnMapping, len(RequiredColumns))
	claimed := make(map[int]bool, len(RequiredColumns))

	// Exact matches first so renamed-but-precise headers always win.
	for _, col := range RequiredColumns {
		for idx, cell := range normalized {
			if claimed[idx] || cell == "" {
				continue
			}
			if matchesAlias(cell, columnAliases[col], true) {
				mapping[col] = idx
				claimed[idx] = true
				break
			}
		}
	}

	// Substring pass for decorated headers ("Markup %", "Labor Cost $").
	for _, col := range RequiredColumns {
		if _, ok := mapping[col]; ok {
			continue
		}
		for idx, cell := range normalized {
			if claimed[idx] || cell == "" {
				continue
			}
			if matchesAlias(cell, columnAliases[col], false) {
				mapping[col] = idx
				claimed[idx] = true
				break
			}
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := mapping[col]; !ok {
			missing = append(missing, string(col))
		}
	}
	return mapping, missing
}

func matchesAlias(cell string, aliases []string, exact bool) bool {
	for _, alias := range aliases {
		if exact {
			if cell == alias {
				return true
			}
			continue
		}
		if strings.Contains(cell, alias) {
			return true
		}
	}
	return false
}

func isBlankRow(row RawRow) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func columnNames(cols []SemanticColumn) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = string(c)
	}
	return out
}
