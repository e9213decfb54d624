// Package importer drives an import session through its linear lifecycle:
// upload, processing, review, confirm. Each step validates its inputs before
// the session advances, and a processing failure returns the session to the
// upload state with a recorded reason.
package importer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/calculator"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/model"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/oracle"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/parser"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/retry"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/validator"
)

// State session lifecycle phase.
type State string

const (
	StateUpload     State = "upload"
	StateProcessing State = "processing"
	StateReview     State = "review"
	StateConfirm    State = "confirm"
)

// Session one import attempt, from file upload to confirmed line items.
// All field access after Upload goes through the coordinator or Snapshot;
// mu keeps state-machine guards atomic with their transitions.
type Session struct {
	mu *sync.Mutex

	ID       string `json:"id"`
	State    State  `json:"state"`
	Filename string `json:"filename"`

	Rows       []parser.RawRow              `json:"-"`
	Detection  parser.FormatDetectionResult `json:"detection"`
	Truncation parser.TruncateResult        `json:"-"`
	Analyses   []parser.RowAnalysis         `json:"-"`

	Items    []model.ImportedLineItem `json:"items,omitempty"`
	Selected map[int]bool             `json:"-"`
	Summary  *model.ImportSummary     `json:"summary,omitempty"`
	Warnings []string                 `json:"warnings,omitempty"`

	// RejectReason set when processing fails and the session falls back
	// to the upload state.
	RejectReason string    `json:"rejectReason,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Snapshot returns a copy that is safe to serialize while other goroutines
// operate on the session.
func (s *Session) Snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := *s
	return snap
}

// SelectedIndexes the sorted indexes of items currently marked for import.
func (s *Session) SelectedIndexes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedIndexes()
}

func (s *Session) selectedIndexes() []int {
	idx := make([]int, 0, len(s.Selected))
	for i, on := range s.Selected {
		if on {
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	return idx
}

// SessionLog persists session lifecycle transitions for audit.
type SessionLog interface {
	CreateImportSession(id, filename string, totalRows int) error
	UpdateImportSession(id, state string, itemCount int, rejectReason string) error
}

// Coordinator runs import sessions.
type Coordinator struct {
	mapper       *parser.ColumnMapper
	preprocessor *parser.RowPreprocessor
	classifier   oracle.Classifier
	sessionLog   SessionLog
	retryCfg     retry.Config

	mu   sync.RWMutex
	calc *calculator.Calculator
}

// NewCoordinator wires the pipeline. sessionLog may be nil to skip audit
// logging.
func NewCoordinator(classifier oracle.Classifier, rates calculator.LaborRates, sessionLog SessionLog, retryCfg retry.Config) (*Coordinator, error) {
	calc, err := calculator.New(rates)
	if err != nil {
		return nil, err
	}
	if retryCfg.Retryable == nil {
		retryCfg.Retryable = retryableOracleError
	}
	return &Coordinator{
		mapper:       parser.NewColumnMapper(),
		preprocessor: parser.NewRowPreprocessor(),
		classifier:   classifier,
		calc:         calc,
		sessionLog:   sessionLog,
		retryCfg:     retryCfg,
	}, nil
}

// UpdateRates replaces the labor rates for subsequent processing. Sessions
// already processed keep their figures.
func (c *Coordinator) UpdateRates(rates calculator.LaborRates) error {
	calc, err := calculator.New(rates)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.calc = calc
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) calculator() *calculator.Calculator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calc
}

// Upload creates a session from raw sheet rows. The format must be fully
// recognized or the upload is rejected outright.
func (c *Coordinator) Upload(filename string, rows []parser.RawRow) (*Session, error) {
	if len(rows) < 2 {
		return nil, ErrEmptyInput
	}

	detection := c.mapper.DetectColumns(rows)
	if !detection.Recognized {
		log.Warn().
			Str("filename", filename).
			Strs("missing", detection.MissingColumns).
			Float64("confidence", detection.Confidence).
			Msg("sheet format not recognized")
		return nil, &FormatNotRecognizedError{
			MissingColumns: detection.MissingColumns,
			Confidence:     detection.Confidence,
		}
	}

	session := &Session{
		mu:        &sync.Mutex{},
		ID:        uuid.NewString(),
		State:     StateUpload,
		Filename:  filename,
		Rows:      rows,
		Detection: detection,
		CreatedAt: time.Now(),
	}

	if c.sessionLog != nil {
		if err := c.sessionLog.CreateImportSession(session.ID, filename, len(rows)); err != nil {
			log.Warn().Err(err).Str("session", session.ID).Msg("session audit log write failed")
		}
	}

	log.Info().
		Str("session", session.ID).
		Str("filename", filename).
		Int("rows", len(rows)).
		Int("header_row", detection.HeaderRowIndex).
		Msg("upload accepted")
	return session, nil
}

// Process runs the full pipeline on an uploaded session: truncate, analyze,
// classify, validate, calculate. On success the session enters review; on
// failure it returns to upload with the reason recorded. The session lock is
// held throughout, so a second Process call blocks and then fails the state
// guard instead of racing.
func (c *Coordinator) Process(ctx context.Context, session *Session) error {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.State != StateUpload {
		return fmt.Errorf("%w: processing requires state %q, session is %q",
			ErrSessionState, StateUpload, session.State)
	}
	session.State = StateProcessing
	session.RejectReason = ""
	c.logTransition(session)

	if err := c.process(ctx, session); err != nil {
		session.State = StateUpload
		session.RejectReason = err.Error()
		c.logTransition(session)
		return err
	}

	session.State = StateReview
	c.logTransition(session)
	return nil
}

func (c *Coordinator) process(ctx context.Context, session *Session) error {
	session.Truncation = c.preprocessor.Truncate(session.Rows, session.Detection.HeaderRowIndex)
	if len(session.Truncation.Rows) == 0 {
		return ErrEmptyInput
	}

	analyzer := parser.NewCompoundRowAnalyzer(session.Detection.Mapping)
	session.Analyses = analyzer.Analyze(session.Truncation.Rows)

	log.Info().
		Str("session", session.ID).
		Int("bounded_rows", len(session.Truncation.Rows)).
		Str("stop_reason", session.Truncation.StopReason).
		Msg("rows bounded for classification")

	resp, err := c.classify(ctx, session)
	if err != nil {
		var malformed *oracle.MalformedError
		if errors.As(err, &malformed) {
			return &OracleMalformedError{Cause: err}
		}
		return &OracleUnavailableError{Cause: err}
	}

	calc := c.calculator()
	items, warnings := validator.ValidateAll(resp.LineItems)
	items = calc.Finalize(items, session.Analyses)
	summary := calc.Summarize(items)
	summary.Warnings = append(warnings, summary.Warnings...)

	session.Items = items
	session.Summary = &summary
	session.Warnings = summary.Warnings

	// Everything selected by default; the review step narrows it down.
	session.Selected = make(map[int]bool, len(items))
	for i := range items {
		session.Selected[i] = true
	}

	log.Info().
		Str("session", session.ID).
		Int("items", len(items)).
		Int("warnings", len(summary.Warnings)).
		Float64("total_price", summary.TotalPrice).
		Msg("classification complete")
	return nil
}

func (c *Coordinator) classify(ctx context.Context, session *Session) (*oracle.Response, error) {
	req := buildOracleRequest(session)
	return retry.WithRetry(ctx, c.retryCfg, func(ctx context.Context) (*oracle.Response, error) {
		return c.classifier.Classify(ctx, req)
	})
}

// buildOracleRequest packages the bounded rows and deterministic findings
// for the classifier. Only truncated rows ever leave the process.
func buildOracleRequest(session *Session) oracle.Request {
	mapping := make(map[string]int, len(session.Detection.Mapping))
	for col, idx := range session.Detection.Mapping {
		mapping[string(col)] = idx
	}

	var hints []oracle.CompoundRowHint
	for _, a := range session.Analyses {
		if !a.NeedsSplit {
			continue
		}
		cats := make([]string, 0, len(a.SplitColumns))
		for _, col := range a.SplitColumns {
			cats = append(cats, string(col))
		}
		hints = append(hints, oracle.CompoundRowHint{RowIndex: a.RowIndex, Categories: cats})
	}

	rows := make([][]string, len(session.Truncation.Rows))
	for i, r := range session.Truncation.Rows {
		rows[i] = r
	}
	return oracle.Request{
		BoundedRows:      rows,
		ColumnMapping:    mapping,
		CompoundRowHints: hints,
		DetectedFormat:   "cost_sheet",
	}
}

// SetSelection replaces the selected item set during review.
func (c *Coordinator) SetSelection(session *Session, indexes []int) error {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.State != StateReview {
		return fmt.Errorf("%w: selection requires state %q, session is %q",
			ErrSessionState, StateReview, session.State)
	}
	selected := make(map[int]bool, len(indexes))
	for _, i := range indexes {
		if i < 0 || i >= len(session.Items) {
			return fmt.Errorf("selection index %d out of range [0, %d)", i, len(session.Items))
		}
		selected[i] = true
	}
	session.Selected = selected
	return nil
}

// Confirm finalizes the session and returns estimate line items for the
// selected rows. The session becomes terminal.
func (c *Coordinator) Confirm(session *Session) ([]model.EstimateLineItem, error) {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.State != StateReview {
		return nil, fmt.Errorf("%w: confirm requires state %q, session is %q",
			ErrSessionState, StateReview, session.State)
	}

	out := make([]model.EstimateLineItem, 0, len(session.Selected))
	for _, i := range session.selectedIndexes() {
		item := session.Items[i]
		out = append(out, model.EstimateLineItem{
			ID:            uuid.NewString(),
			Description:   item.Description,
			Category:      item.Category,
			Quantity:      item.Quantity,
			Unit:          item.Unit,
			CostPerUnit:   item.CostPerUnit,
			MarkupPercent: item.MarkupPercent,
			PricePerUnit:  item.PricePerUnit,
			Total:         item.Total,
		})
	}

	session.State = StateConfirm
	c.logTransition(session)
	log.Info().
		Str("session", session.ID).
		Int("confirmed", len(out)).
		Int("available", len(session.Items)).
		Msg("import confirmed")
	return out, nil
}

func (c *Coordinator) logTransition(session *Session) {
	if c.sessionLog == nil {
		return
	}
	if err := c.sessionLog.UpdateImportSession(session.ID, string(session.State), len(session.Items), session.RejectReason); err != nil {
		log.Warn().Err(err).Str("session", session.ID).Msg("session audit log update failed")
	}
}
