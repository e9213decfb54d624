package importer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/oracle"
)

// ErrEmptyInput the uploaded sheet has too few rows to hold a header and data.
var ErrEmptyInput = errors.New("sheet has no data rows")

// ErrSessionState the requested operation is not valid in the session's
// current state.
var ErrSessionState = errors.New("operation not valid in current session state")

// FormatNotRecognizedError the column mapper could not resolve all required
// columns. The import is rejected rather than guessed at.
type FormatNotRecognizedError struct {
	MissingColumns []string
	Confidence     float64
}

func (e *FormatNotRecognizedError) Error() string {
	if len(e.MissingColumns) == 0 {
		return "sheet format not recognized"
	}
	return fmt.Sprintf("sheet format not recognized: missing columns %s (confidence %.2f)",
		strings.Join(e.MissingColumns, ", "), e.Confidence)
}

// OracleUnavailableError the classifier could not produce a usable response
// after retries. The session returns to the upload state so the user can
// retry later.
type OracleUnavailableError struct {
	Cause error
}

func (e *OracleUnavailableError) Error() string {
	return fmt.Sprintf("classification unavailable: %v", e.Cause)
}

func (e *OracleUnavailableError) Unwrap() error { return e.Cause }

// OracleMalformedError the classifier responded but its payload could not
// be parsed into line items. Distinct from unavailability: retrying will
// not help, and the failure points at the service contract rather than at
// transport.
type OracleMalformedError struct {
	Cause error
}

func (e *OracleMalformedError) Error() string {
	return fmt.Sprintf("classification response malformed: %v", e.Cause)
}

func (e *OracleMalformedError) Unwrap() error { return e.Cause }

// retryableOracleError reports whether a classification failure is worth
// retrying. Auth failures and malformed responses will not improve on retry.
func retryableOracleError(err error) bool {
	if errors.Is(err, oracle.ErrAuth) {
		return false
	}
	var malformed *oracle.MalformedError
	return !errors.As(err, &malformed)
}
