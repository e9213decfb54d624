package parser

import "strings"

// stopMarkers end-of-line-items vocabulary. A data row whose first cell or
// joined text contains one of these ends the import slice; everything after
// it (totals, contract boilerplate, signatures) is never shown downstream.
var stopMarkers = []string{
	"total cost",
	"grand total",
	"subcontractor expenses",
	"construction contract",
	"client signature",
	"terms and conditions",
	"approved by",
}

// emptyRunLength consecutive effectively-empty rows that end the line items.
const emptyRunLength = 3

// RowPreprocessor truncates the row set at the first end-of-line-items
// boundary. This is a robustness boundary: the classification oracle only
// ever sees rows that survive truncation.
type RowPreprocessor struct{}

// NewRowPreprocessor creates a row preprocessor.
func NewRowPreprocessor() *RowPreprocessor {
	return &RowPreprocessor{}
}

// Truncate returns the data rows after headerRowIndex and before the first
// stop marker or run of empty rows.
func (p *RowPreprocessor) Truncate(rows []RawRow, headerRowIndex int) TruncateResult {
	start := headerRowIndex + 1
	if start < 0 {
		start = 0
	}
	if start >= len(rows) {
		return TruncateResult{Rows: []RawRow{}, StoppedAtRow: len(rows), StopReason: StopReasonEndOfInput}
	}

	emptyRun := 0
	for i := start; i < len(rows); i++ {
		row := rows[i]

		if matchesStopMarker(row) {
			return TruncateResult{
				Rows:         rows[start:i],
				StoppedAtRow: i,
				StopReason:   StopReasonMarker,
			}
		}

		if IsEffectivelyEmpty(row) {
			emptyRun++
			if emptyRun >= emptyRunLength {
				runStart := i - emptyRunLength + 1
				return TruncateResult{
					Rows:         rows[start:runStart],
					StoppedAtRow: runStart,
					StopReason:   StopReasonEmptyRun,
				}
			}
			continue
		}
		emptyRun = 0
	}

	return TruncateResult{
		Rows:         rows[start:],
		StoppedAtRow: len(rows),
		StopReason:   StopReasonEndOfInput,
	}
}

func matchesStopMarker(row RawRow) bool {
	if len(row) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(row[0]))
	if ContainsAny(first, stopMarkers) {
		return true
	}
	joined := strings.ToLower(strings.TrimSpace(strings.Join(row, " ")))
	return ContainsAny(joined, stopMarkers)
}
