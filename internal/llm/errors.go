package llm

import "fmt"

// ProviderError reports a transport, auth, or rate-limit failure from the
// text-generation provider. One failing panel member does not abort a
// validation run.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider: %v", e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ParseError reports a provider response that could not be interpreted as
// the expected structured shape. Raw carries the offending response text.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
