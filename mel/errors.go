package mel

import "errors"

var (
	// ErrState is returned when a command is issued against missing state,
	// such as an unknown command name or no default model.
	ErrState = errors.New("mel: invalid editor state")

	// ErrReferenceScope is returned when a command mixes nodes from
	// different models where it must not.
	ErrReferenceScope = errors.New("mel: nodes belong to different models")
)
