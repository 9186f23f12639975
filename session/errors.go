package session

import "errors"

var (
	// ErrHandshake indicates the key agreement failed or the peer spoke a
	// different protocol.
	ErrHandshake = errors.New("session: handshake failed")

	// ErrFrameTooLarge indicates a frame above MaxFrameLen.
	ErrFrameTooLarge = errors.New("session: frame too large")

	// ErrDecrypt indicates a frame failed authentication. The session is
	// unusable afterwards.
	ErrDecrypt = errors.New("session: frame authentication failed")

	// ErrClosed indicates use of a closed session.
	ErrClosed = errors.New("session: closed")

	// ErrDNSLookupFailed indicates a DNS lookup error.
	ErrDNSLookupFailed = errors.New("session: DNS lookup failed")

	// ErrNoEndpoints indicates no SRV records were found.
	ErrNoEndpoints = errors.New("session: no peer endpoints found")

	// ErrDNSSECValidationFailed indicates the upstream resolver did not
	// authenticate the answer.
	ErrDNSSECValidationFailed = errors.New("session: DNSSEC validation failed")
)
