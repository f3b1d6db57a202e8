package lending

import "errors"

var (
	// ErrRemoteCall marks any failure of a backend collaborator call.
	ErrRemoteCall = errors.New("remote call failed")
	// ErrMalformedData marks a transaction record that cannot be used.
	ErrMalformedData = errors.New("malformed transaction record")
)
