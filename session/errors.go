package session

import "errors"

// Failure categories for authentication operations. Callers classify with
// errors.Is; the concrete cause is carried in the wrapped message.
var (
	// ErrInitialization means the identity-provider client could not be
	// constructed. Fatal to all auth operations until the process restarts.
	ErrInitialization = errors.New("identity provider initialization failed")

	// ErrExchange means the authorization code exchange with the provider
	// failed or produced an unusable response.
	ErrExchange = errors.New("authorization code exchange failed")

	// ErrNonceMismatch means a callback's nonce claim did not match the
	// outstanding value. Treated as a potential replay attempt.
	ErrNonceMismatch = errors.New("nonce mismatch")

	// ErrNetwork means a silent check or profile fetch could not reach the
	// provider. The affected check is denied, not retried.
	ErrNetwork = errors.New("identity provider unreachable")
)
