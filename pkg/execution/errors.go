package execution

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrStaleRoute is matched by *StaleRouteError
	ErrStaleRoute = errors.New("stale route")
	// ErrChainNotConfigured is returned before any network call when a chain has no client or bundler
	ErrChainNotConfigured = errors.New("chain not configured")
	// ErrNoAccount is returned when the executor has no account provider
	ErrNoAccount = errors.New("no account provider")
)

// StaleRouteError is returned when a bundle expired before it could be submitted.
// The bundle must be re-quoted, not re-signed.
type StaleRouteError struct {
	Expires time.Time
	Now     time.Time
}

func (e *StaleRouteError) Error() string {
	return fmt.Sprintf("route expired at %s (now %s)", e.Expires.UTC().Format(time.RFC3339), e.Now.UTC().Format(time.RFC3339))
}

func (e *StaleRouteError) Unwrap() error { return ErrStaleRoute }

// IntentFailedError is returned by Wait when a bundle reached FAILED
type IntentFailedError struct {
	ID string
}

func (e *IntentFailedError) Error() string {
	return fmt.Sprintf("intent %s failed", e.ID)
}

// IntentExpiredError is returned by Wait when a bundle reached EXPIRED
type IntentExpiredError struct {
	ID string
}

func (e *IntentExpiredError) Error() string {
	return fmt.Sprintf("intent %s expired", e.ID)
}

// UserOpFailedError is returned by Wait when a user operation was included but reverted
type UserOpFailedError struct {
	Hash   common.Hash
	Reason string
}

func (e *UserOpFailedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("user operation %s reverted: %s", e.Hash.Hex(), e.Reason)
	}
	return fmt.Sprintf("user operation %s reverted", e.Hash.Hex())
}
