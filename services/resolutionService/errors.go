package resolutionService

import (
	"errors"

	"streakEngine/services/ledgerService"
)

var (
	// ErrInvalidState means the parlay is no longer resolvable, usually because it
	// already resolved. Callers skip it.
	ErrInvalidState = errors.New("parlay not in a resolvable state")
	// ErrOrderingBlock means an earlier parlay of the same user is still unresolved.
	// The parlay stays LOCKED and is offered again on the next scan.
	ErrOrderingBlock = errors.New("earlier parlay for user is unresolved")
	// ErrIndeterminate means the legs do not determine a result. Not retried.
	ErrIndeterminate = errors.New("parlay outcome is indeterminate")
	// ErrResolutionFailed means the parlay was marked RESOLUTION_FAILED.
	ErrResolutionFailed = errors.New("parlay resolution failed")
)

// permanent errors are never retried by the engine.
func permanent(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrOrderingBlock) ||
		needsOperator(err)
}

// needsOperator errors fail the parlay on the first attempt.
func needsOperator(err error) bool {
	return errors.Is(err, ErrIndeterminate) ||
		errors.Is(err, ledgerService.ErrLedgerDrift) ||
		errors.Is(err, ledgerService.ErrNegativeStreak)
}
