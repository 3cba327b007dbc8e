package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFundingStatus_CanTransitionTo(t *testing.T) {
	all := []FundingStatus{
		FundingStatusPending,
		FundingStatusConfirmed,
		FundingStatusRewardSent,
		FundingStatusExpired,
		FundingStatusFailed,
	}
	allowed := map[FundingStatus]map[FundingStatus]bool{
		FundingStatusPending:   {FundingStatusConfirmed: true, FundingStatusExpired: true},
		FundingStatusConfirmed: {FundingStatusRewardSent: true, FundingStatusFailed: true},
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[from][to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestFundingStatus_IsTerminal(t *testing.T) {
	assert.False(t, FundingStatusPending.IsTerminal())
	assert.False(t, FundingStatusConfirmed.IsTerminal())
	assert.True(t, FundingStatusRewardSent.IsTerminal())
	assert.True(t, FundingStatusExpired.IsTerminal())
	assert.True(t, FundingStatusFailed.IsTerminal())
}

func TestFundingRecord_IsExpiredAt(t *testing.T) {
	expiresAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := &FundingRecord{ExpiresAt: expiresAt}

	assert.False(t, r.IsExpiredAt(expiresAt))
	assert.False(t, r.IsExpiredAt(expiresAt.Add(-time.Second)))
	assert.True(t, r.IsExpiredAt(expiresAt.Add(time.Second)))
}

func TestChain_IsValid(t *testing.T) {
	for _, c := range SupportedChains {
		assert.True(t, c.IsValid())
	}
	assert.False(t, Chain("STRIPE").IsValid())
	assert.False(t, Chain("eth").IsValid())
}
