package campaign

import "errors"

// ErrRateLimited is returned when a donor confirms too many payments.
var ErrRateLimited = errors.New("too many donation confirmations, please try again later")

// ValidationError reports a single invalid input field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"error"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
