package booth

import "errors"

type Kind string

const (
	// KindValidation marks a request rejected before anything was touched.
	KindValidation Kind = "validation"
	// KindFatal marks a request aborted part way through.
	KindFatal Kind = "fatal"
)

// Error is the single terminal failure of a request. Diagnostics are merged
// into the response body next to the message.
type Error struct {
	Kind        Kind
	Message     string
	Diagnostics map[string]any
	Err         error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Body renders the error as the response object sent to the kiosk.
func (e *Error) Body() map[string]any {
	body := make(map[string]any, len(e.Diagnostics)+1)
	for k, v := range e.Diagnostics {
		body[k] = v
	}
	body["error"] = e.Error()
	return body
}

// IsValidation reports whether err rejected the request before processing.
func IsValidation(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == KindValidation
}

func validationError(err error) *Error {
	return &Error{Kind: KindValidation, Err: err}
}

func fatalError(message string, err error) *Error {
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	return &Error{Kind: KindFatal, Message: message, Err: err}
}
