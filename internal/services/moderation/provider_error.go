package moderation

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Diagnostic codes carried by ProviderError. They end up in verdict details and
// in the flagged category when every stage fails, so an operator can triage.
const (
	CodeMissingConfiguration = "missing_configuration"
	CodeTimeout              = "timeout"
	CodeHTTPError            = "http_error"
	CodeParseError           = "parse_error"
)

// ProviderError is a tagged failure from one of the external providers. It is
// always caught inside the orchestrator and converted into a flagged verdict;
// it never escapes Evaluate.
type ProviderError struct {
	Provider string
	Code     string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Code, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func newProviderError(provider, code string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Code: code, Err: err}
}

// classifyTransportError maps a transport-level failure onto the timeout vs
// generic HTTP error taxonomy.
func classifyTransportError(provider string, err error) *ProviderError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newProviderError(provider, CodeTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newProviderError(provider, CodeTimeout, err)
	}
	return newProviderError(provider, CodeHTTPError, err)
}
