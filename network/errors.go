package network

import "errors"

var (
	// ErrDuplicateNode is returned when a node name is already taken.
	ErrDuplicateNode = errors.New("network: duplicate node name")

	// ErrNodeNotFound is returned when a node name is not in the network.
	ErrNodeNotFound = errors.New("network: node not found")

	// ErrForeignNode is returned when an operation receives a node that
	// belongs to a different network.
	ErrForeignNode = errors.New("network: node belongs to a different network")

	// ErrModelFormat is returned when a model file cannot be read back.
	ErrModelFormat = errors.New("network: malformed model file")
)
