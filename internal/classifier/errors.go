package classifier

import (
	"fmt"
	"net/http"
)

// APIError represents a non-2xx answer from a remote model service.
type APIError struct {
	StatusCode int
	Message    string
	Raw        map[string]any
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("model api error: status=%d message=%s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("model api error: status=%d", e.StatusCode)
}

// BadRequestError indicates the service rejected the feature payload.
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return fmt.Sprintf("bad request: %s", e.APIError.Error()) }

// ServerError indicates 5xx errors from the model service.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return fmt.Sprintf("model service error: %s", e.APIError.Error()) }

// UnreachableError indicates the model service could not be contacted.
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("model service unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("model service unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

func classifyAPIError(apiErr *APIError) error {
	switch {
	case apiErr.StatusCode == http.StatusBadRequest:
		return &BadRequestError{APIError: apiErr}
	case apiErr.StatusCode >= 500:
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}
