package spindle

import "errors"

var (
	// ErrUnknownFunction is returned when a function call names a function
	// that is not in the registry.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrInvalidArguments is returned when a function call's arguments fail
	// validation against the declared parameter schema.
	ErrInvalidArguments = errors.New("invalid function arguments")

	// ErrSessionClosed is returned by session methods after Dispose.
	ErrSessionClosed = errors.New("session is closed")

	// ErrNoJSONFound is returned when no balanced JSON object or array could
	// be located in model output.
	ErrNoJSONFound = errors.New("no JSON value found in response")
)
