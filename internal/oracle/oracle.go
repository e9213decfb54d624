// Package oracle adapts the external line-item classification service.
// The service is best-effort and untrusted: its output is always passed
// through the schema validator, and row content is framed as data so
// instruction-like text inside cells is never interpreted.
package oracle

import (
	"context"
	"errors"
	"fmt"
)

// Request the bounded, truncated rows plus deterministic hints.
type Request struct {
	BoundedRows      [][]string        `json:"boundedRows"`
	ColumnMapping    map[string]int    `json:"columnMapping"`
	CompoundRowHints []CompoundRowHint `json:"compoundRowHints"`
	DetectedFormat   string            `json:"detectedFormat"`
}

// CompoundRowHint a pre-identified row carrying amounts in more than one
// cost category.
type CompoundRowHint struct {
	RowIndex   int      `json:"rowIndex"`
	Categories []string `json:"categories"`
}

// Candidate one proposed line item. Numeric fields are deliberately loose
// (any): the oracle may return numbers, numeric strings, or garbage, and
// coercion is the validator's job.
type Candidate struct {
	Description   string `json:"description"`
	Category      string `json:"category"`
	Quantity      any    `json:"quantity"`
	Unit          string `json:"unit"`
	CostPerUnit   any    `json:"costPerUnit"`
	MarkupPercent any    `json:"markupPercent"`
	PricePerUnit  any    `json:"pricePerUnit"`
	Total         any    `json:"total"`
	LaborHours    any    `json:"laborHours"`
	SourceRow     any    `json:"sourceRow"`
}

// Response the oracle's candidate list.
type Response struct {
	LineItems []Candidate `json:"lineItems"`
}

// Classifier is the single entry point to the classification service.
// Injected so the pipeline can be exercised with canned and adversarial
// responses.
type Classifier interface {
	Classify(ctx context.Context, req Request) (*Response, error)
}

// Transient failure causes, matched with errors.Is by the orchestrator.
var (
	ErrRateLimited = errors.New("classification service rate limited")
	ErrAuth        = errors.New("classification service authentication failed")
	ErrTimeout     = errors.New("classification service timed out")
)

// MalformedError the service answered, but not with a usable candidate list.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("classification response malformed: %s", e.Reason)
}
