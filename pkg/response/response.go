package response

import (
	"errors"
	"net/http"
)

// Error is a domain error carrying the HTTP status it should surface as.
// Wrap it with fmt.Errorf("%w: ...") to add detail; errors.Is and StatusCode
// still see through the wrapping.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Err.Error() == t.Err.Error()
}

func NewError(code int, err string) error {
	return &Error{code, errors.New(err)}
}

// StatusCode returns the status of the first *Error in err's chain, or 500.
func StatusCode(err error) int {
	var respErr *Error
	if errors.As(err, &respErr) {
		return respErr.Code
	}
	return http.StatusInternalServerError
}
