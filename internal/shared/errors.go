package shared

import "errors"

var (
	// ErrActorInvalid indicates a malformed actor header from the gateway.
	ErrActorInvalid = errors.New("actor header invalid")
)
