// Package errs provides the structured failure taxonomy for lensvault resolution steps.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Code identifies a failure category within the resolution pipeline.
type Code string

const (
	// CodeInvalidURL indicates the target URL could not be parsed.
	CodeInvalidURL Code = "invalid_url"
	// CodeJSONParse indicates a payload that is not valid JSON.
	CodeJSONParse Code = "json_parse"
	// CodeJSONStructure indicates valid JSON with an unexpected shape or a missing property path.
	CodeJSONStructure Code = "json_structure"
	// CodeRequest indicates an uncategorized transport failure.
	CodeRequest Code = "request"
	// CodeTimeout indicates an attempt that exceeded the connection timeout.
	CodeTimeout Code = "timeout"
	// CodeHTTPStatus indicates a 4xx/5xx response other than 404.
	CodeHTTPStatus Code = "http_status"
	// CodeNotFound indicates an HTTP 404 or a structurally absent resource.
	CodeNotFound Code = "not_found"
	// CodeAggregate wraps multiple sub-failures from a fan-out of candidate sources.
	CodeAggregate Code = "aggregate"
)

// E captures structured failure information produced across the lensvault stack.
// Each retry layer wraps the prior attempt's failure as cause, forming a chain.
type E struct {
	Code    Code
	URL     string
	HTTP    int
	Message string

	cause    error
	failures []error
}

// Option configures a failure envelope.
type Option func(*E)

// New constructs a failure envelope for the given code.
func New(code Code, opts ...Option) *E {
	e := &E{
		Code:     code,
		URL:      "",
		HTTP:     0,
		Message:  "",
		cause:    nil,
		failures: nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the failure.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithURL records the source URL the failure relates to.
func WithURL(url string) Option {
	trimmed := strings.TrimSpace(url)
	return func(e *E) {
		e.URL = trimmed
	}
}

// WithHTTP records the associated HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithCause sets the underlying cause, linking this failure into a chain.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

// WithFailures attaches the sub-failures collected by an aggregate envelope.
func WithFailures(errs ...error) Option {
	return func(e *E) {
		for _, err := range errs {
			if err != nil {
				e.failures = append(e.failures, err)
			}
		}
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = string(CodeRequest)
	}
	parts = append(parts, "code="+code)

	if e.URL != "" {
		parts = append(parts, "url="+strconv.Quote(e.URL))
	}
	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if len(e.failures) > 0 {
		parts = append(parts, "failures="+strconv.Itoa(len(e.failures)))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Failures returns the sub-failures carried by an aggregate envelope.
func (e *E) Failures() []error {
	if e == nil {
		return nil
	}
	return e.failures
}

// Chain returns the failure followed by every cause in order, for logging.
func (e *E) Chain() []error {
	if e == nil {
		return nil
	}
	var chain []error
	var cur error = e
	for cur != nil {
		chain = append(chain, cur)
		cur = errors.Unwrap(cur)
	}
	return chain
}

// CodeOf extracts the failure code from an error, or CodeRequest when untyped.
func CodeOf(err error) Code {
	var e *E
	if errors.As(err, &e) && e != nil {
		return e.Code
	}
	return CodeRequest
}

// IsNotFound reports whether the error represents a structurally absent resource.
func IsNotFound(err error) bool {
	var e *E
	return errors.As(err, &e) && e != nil && e.Code == CodeNotFound
}

// IsTimeout reports whether the error represents an exceeded connection timeout.
func IsTimeout(err error) bool {
	var e *E
	return errors.As(err, &e) && e != nil && e.Code == CodeTimeout
}
