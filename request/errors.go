package request

import "fmt"

// Kind classifies a BuildError.
type Kind string

// Build failure kinds.
const (
	KindInvalidURL  Kind = "invalid_url"
	KindEncoding    Kind = "encoding"
	KindCredentials Kind = "credentials"
)

// BuildError reports why a Descriptor could not become a wire request.
type BuildError struct {
	Kind    Kind
	Message string
	Err     error
}

func newBuildError(kind Kind, message string, err error) *BuildError {
	return &BuildError{Kind: kind, Message: message, Err: err}
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("build request: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("build request: %s: %s", e.Kind, e.Message)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}
