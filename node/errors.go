package node

import "errors"

var (
	// ErrDeclined indicates the remote peer declined a topic, message or read.
	ErrDeclined = errors.New("node: declined")

	// ErrRejected indicates the remote peer rejected a container or chunk pull.
	ErrRejected = errors.New("node: rejected")

	// ErrPeerClosed indicates the session ended before a response arrived.
	ErrPeerClosed = errors.New("node: peer closed")

	// ErrUnexpectedResponse indicates a correlated response of the wrong variant.
	ErrUnexpectedResponse = errors.New("node: unexpected response")

	// ErrInactiveApp indicates the application is not served by this node.
	ErrInactiveApp = errors.New("node: application not active")

	// ErrPolicy indicates a payload violates the application's policy.
	ErrPolicy = errors.New("node: payload refused by application policy")

	// ErrNilParam indicates a required parameter was nil.
	ErrNilParam = errors.New("node: required parameter is nil")
)
