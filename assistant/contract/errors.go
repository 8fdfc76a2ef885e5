package contract

import "errors"

var (
	// ErrIdentityUnresolved is fatal to the assistant feature for the
	// session: the principal matched no identity collection.
	ErrIdentityUnresolved = errors.New("identity unresolved")

	// ErrAccessDenied marks an intent the caller's role is not permitted to
	// invoke. Carriers must only ever reveal the role's own allow-list.
	ErrAccessDenied = errors.New("access denied")

	// ErrRetrievalFailed distinguishes a store failure from an empty result.
	ErrRetrievalFailed = errors.New("retrieval failed")

	ErrGenerationFailed = errors.New("generation failed")

	// ErrSessionBusy rejects a send while another exchange is in flight.
	ErrSessionBusy = errors.New("session busy")

	ErrValidation  = errors.New("validation failed")
	ErrDocNotFound = errors.New("document not found")
)
