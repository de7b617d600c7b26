package exchange

import "errors"

// Validation failures returned by the engine. Every one of them leaves
// all state unchanged; callers discriminate with errors.Is and turn them
// into user-facing messages. Anything else coming out of the engine is a
// storage failure and should be treated as fatal for the request.
var (
	ErrItemNotFound       = errors.New("item not found")
	ErrSelfTrade          = errors.New("cannot propose an exchange with yourself")
	ErrItemNotPublic      = errors.New("item is not public")
	ErrNotOwner           = errors.New("sender does not own the offered item")
	ErrItemAlreadyPending = errors.New("item is already part of a pending exchange")
	ErrExchangeNotFound   = errors.New("exchange not found")
	ErrAlreadyResolved    = errors.New("exchange has already been resolved")
	ErrNotAuthorized      = errors.New("only the receiver may resolve an exchange")
	ErrOwnershipChanged   = errors.New("item ownership changed since the exchange was proposed")
)
