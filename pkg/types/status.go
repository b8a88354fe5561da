package types

import "fmt"

// Code is a request-completion status code.
type Code int

const (
	CodeNormal Code = iota
	CodeDisconn
	CodeGetFail
	CodePutFail
	CodeBadType
	CodeChanDestroy
	CodeTimeout
	CodeUsageError
	CodeConfigError
)

// String returns the code's symbolic name.
func (c Code) String() string {
	switch c {
	case CodeNormal:
		return "NORMAL"
	case CodeDisconn:
		return "DISCONN"
	case CodeGetFail:
		return "GETFAIL"
	case CodePutFail:
		return "PUTFAIL"
	case CodeBadType:
		return "BADTYPE"
	case CodeChanDestroy:
		return "CHANDESTROY"
	case CodeTimeout:
		return "TIMEOUT"
	case CodeUsageError:
		return "USAGE_ERROR"
	case CodeConfigError:
		return "CONFIG_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Status bundles a Code with a human-readable message; it is the value
// every failed request future completes with.
type Status struct {
	Code    Code
	Message string
}

// Error implements the error interface so a Status can be returned or
// wrapped directly as a Go error.
func (s Status) Error() string {
	if s.Message == "" {
		return s.Code.String()
	}
	return fmt.Sprintf("%s: %s", s.Code, s.Message)
}

// IsNormal reports whether this status represents success.
func (s Status) IsNormal() bool {
	return s.Code == CodeNormal
}

// Normal is the canonical success status.
var Normal = Status{Code: CodeNormal}

// NewStatus builds a non-normal status with a formatted message.
func NewStatus(code Code, format string, args ...interface{}) Status {
	return Status{Code: code, Message: fmt.Sprintf(format, args...)}
}
