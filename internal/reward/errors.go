package reward

import "github.com/pkg/errors"

var (
	ErrInvalidRecipient            = errors.New("invalid reward recipient address")
	ErrBelowMinimumFunding         = errors.New("funded amount is below the minimum USD value")
	ErrInsufficientTreasuryBalance = errors.New("insufficient ICY balance in treasury")
	ErrRewardTxReverted            = errors.New("reward transaction reverted")

	// ErrRewardTxPending means the transfer was broadcast but its outcome is not known yet.
	// It must be reconciled, never resent.
	ErrRewardTxPending = errors.New("reward transaction not mined yet")

	// ErrRewardTxDropped means the node no longer knows the transfer, so nothing was paid.
	ErrRewardTxDropped = errors.New("reward transaction dropped")
)

// IsPermanent reports whether retrying the reward can never succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInvalidRecipient) || errors.Is(err, ErrBelowMinimumFunding)
}
