package oracle

import (
	"errors"
	"regexp"
	"strconv"
)

// ExecOutcome is the payload for non-row statements.
type ExecOutcome struct {
	Message      string `json:"message"`
	RowsAffected *int64 `json:"rowsAffected,omitempty"`
}

// NewExecOutcome builds the payload for a successful non-row statement,
// reporting the affected-row count when the driver supplied one.
func NewExecOutcome(message string, rowsAffected int64) ExecOutcome {
	out := ExecOutcome{Message: message}
	if rowsAffected >= 0 {
		out.RowsAffected = &rowsAffected
	}
	return out
}

// OpError is the uniform error description inside an error envelope: a
// human-readable message, the driver-supplied error code when one exists,
// and a static remediation hint keyed to the operation kind.
type OpError struct {
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

var oraCodePattern = regexp.MustCompile(`ORA-(\d{3,5})`)

// ErrorCode extracts the numeric Oracle error code from a driver error,
// 0 when there is none. godror errors carry a Code method; the ORA-NNNNN
// text form is the fallback.
func ErrorCode(err error) int {
	if err == nil {
		return 0
	}
	var carrier interface{ Code() int }
	if errors.As(err, &carrier) {
		return carrier.Code()
	}
	if m := oraCodePattern.FindStringSubmatch(err.Error()); m != nil {
		n, convErr := strconv.Atoi(m[1])
		if convErr == nil {
			return n
		}
	}
	return 0
}

// NormalizeError converts a driver failure into the uniform error shape.
func NormalizeError(err error, hint string) *OpError {
	return &OpError{
		Message: err.Error(),
		Code:    ErrorCode(err),
		Hint:    hint,
	}
}
