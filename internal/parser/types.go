package parser

// RawRow one spreadsheet row as ordered string cells, index-addressed
type RawRow []string

// SemanticColumn semantic name of a budget-sheet column
type SemanticColumn string

const (
	ColItem          SemanticColumn = "item"
	ColSubcontractor SemanticColumn = "subcontractor"
	ColLabor         SemanticColumn = "labor"
	ColMaterial      SemanticColumn = "material"
	ColSub           SemanticColumn = "sub"
	ColTotal         SemanticColumn = "total"
	ColMarkup        SemanticColumn = "markup"
)

// RequiredColumns every semantic column a budget sheet must resolve.
// Order matters: it is also the claim order during alias matching, so
// "subcontractor" is resolved before the shorter "sub" alias can steal its cell.
var RequiredColumns = []SemanticColumn{
	ColItem,
	ColSubcontractor,
	ColLabor,
	ColMaterial,
	ColSub,
	ColTotal,
	ColMarkup,
}

// ColumnMapping semantic column name -> zero-based column index
type ColumnMapping map[SemanticColumn]int

// FormatDetectionResult outcome of budget-sheet format detection
type FormatDetectionResult struct {
	Recognized     bool          `json:"recognized"`
	Confidence     float64       `json:"confidence"`
	HeaderRowIndex int           `json:"headerRowIndex"` // -1 when not recognized
	Mapping        ColumnMapping `json:"columnMapping,omitempty"`
	MissingColumns []string      `json:"missingColumns,omitempty"`
}

// Stop reasons reported by the row preprocessor.
const (
	StopReasonMarker     = "stop_marker"
	StopReasonEmptyRun   = "empty_run"
	StopReasonEndOfInput = "end_of_input"
)

// TruncateResult data rows before the first end-of-line-items boundary
type TruncateResult struct {
	Rows         []RawRow `json:"rows"`
	StoppedAtRow int      `json:"stoppedAtRow"` // absolute row index of the stop point
	StopReason   string   `json:"stopReason"`
}

// RowAnalysis per-data-row amounts by cost column and the split verdict
type RowAnalysis struct {
	RowIndex     int                        `json:"rowIndex"` // index within the truncated data rows
	Amounts      map[SemanticColumn]float64 `json:"amountsByCategory"`
	NeedsSplit   bool                       `json:"needsSplit"`
	SplitColumns []SemanticColumn           `json:"splitCategories,omitempty"`
}
