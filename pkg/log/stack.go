package log

import (
	"github.com/cockroachdb/errors"
)

// errorStackMarshaler extracts the stack trace recorded by cockroachdb/errors.
// It is installed as zerolog.ErrorStackMarshaler so that Event.Stack() emits
// the trace under StacktraceKey.
func errorStackMarshaler(err error) interface{} {
	if st := extractStacktrace(err); st != "" {
		return st
	}
	return nil
}

func extractStacktrace(err error) string {
	if err == nil {
		return ""
	}
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	// WithStack wraps the original error, so the outermost layer may carry no
	// details. Walk the chain until a layer with a trace is found.
	if cause := errors.UnwrapOnce(err); cause != nil {
		return extractStacktrace(cause)
	}
	return ""
}
