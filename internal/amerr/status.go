package amerr

import "fmt"

// UnexpectedStatusError is returned when the GitHub API responded with a
// status code that the operation does not handle.
type UnexpectedStatusError struct {
	Operation string
	Status    int
	Body      []byte
	// Err is the error returned by the API client, it can be nil.
	Err error
}

func (e *UnexpectedStatusError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("%s: unexpected response status code: %d", e.Operation, e.Status)
	}

	return fmt.Sprintf("%s: unexpected response status code: %d, response: %q", e.Operation, e.Status, string(e.Body))
}

func (e *UnexpectedStatusError) Unwrap() error {
	return e.Err
}
