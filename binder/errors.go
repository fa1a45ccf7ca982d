package binder

import "errors"

var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrMissingContentType   = errors.New("missing content type")
	ErrInvalidJSON          = errors.New("invalid JSON")
	ErrInvalidQuery         = errors.New("invalid query parameter")
	ErrInvalidPath          = errors.New("invalid path parameter")
	ErrBodyTooLarge         = errors.New("request body too large")
)

// IsBindError reports whether err came from a binder, i.e. the request was malformed.
func IsBindError(err error) bool {
	return errors.Is(err, ErrUnsupportedMediaType) ||
		errors.Is(err, ErrMissingContentType) ||
		errors.Is(err, ErrInvalidJSON) ||
		errors.Is(err, ErrInvalidQuery) ||
		errors.Is(err, ErrInvalidPath) ||
		errors.Is(err, ErrBodyTooLarge)
}
