package collector

import (
	"fmt"
)

// UpstreamError reports a transport failure or a non-success HTTP status
// from one of the platforms.
type UpstreamError struct {
	URL    string
	Status int // 0 when no response was received
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream %s returned %d: %s", e.URL, e.Status, e.Body)
	}
	return fmt.Sprintf("upstream %s request error: %v", e.URL, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ParseError reports a response body or URL that does not have the
// expected shape.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot parse %q: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("cannot parse %q", e.Input)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ResolutionError is returned when a redirect chain is longer than the
// resolver allows.
type ResolutionError struct {
	URL  string
	Hops int
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("redirect chain from %s exceeded %d hops", e.URL, e.Hops)
}
