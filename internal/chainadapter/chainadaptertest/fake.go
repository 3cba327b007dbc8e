// Package chainadaptertest provides a scriptable adapter for pipeline tests.
package chainadaptertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/dwarvesf/icy-funding-backend/internal/chainadapter"
	"github.com/dwarvesf/icy-funding-backend/internal/model"
)

type Fake struct {
	chain            model.Chain
	minConfirmations int

	mu          sync.Mutex
	results     map[string]*chainadapter.ConfirmationResult
	seenAt      map[string]time.Time
	balances    map[string]decimal.Decimal
	balanceErr  error
	deposits    map[string]chainadapter.Deposit
	delays      map[string]time.Duration
	checkCalls  map[string]int
	generateErr error
	withKeys    bool
}

func New(chain model.Chain, minConfirmations int) *Fake {
	return &Fake{
		chain:            chain,
		minConfirmations: minConfirmations,
		results:          map[string]*chainadapter.ConfirmationResult{},
		seenAt:           map[string]time.Time{},
		balances:         map[string]decimal.Decimal{},
		deposits:         map[string]chainadapter.Deposit{},
		delays:           map[string]time.Duration{},
		checkCalls:       map[string]int{},
		withKeys:         true,
	}
}

// WatchOnly makes GenerateAddress return no private key, like xpub derivation.
func (f *Fake) WatchOnly() *Fake {
	f.withKeys = false
	return f
}

func (f *Fake) SetResult(address string, result *chainadapter.ConfirmationResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[address] = result
	delete(f.seenAt, address)
}

// SetResultAt scripts a transfer made at a known time. It is hidden from deposits
// assigned after it.
func (f *Fake) SetResultAt(address string, result *chainadapter.ConfirmationResult, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[address] = result
	f.seenAt[address] = at
}

func (f *Fake) SetBalance(address string, balance decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[address] = balance
}

func (f *Fake) FailBalance(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balanceErr = err
}

// LastDeposit returns the last query made for address.
func (f *Fake) LastDeposit(address string) chainadapter.Deposit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deposits[address]
}

// SetDelay makes CheckTransactions block for d or until ctx ends.
func (f *Fake) SetDelay(address string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[address] = d
}

func (f *Fake) FailGenerate(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateErr = err
}

func (f *Fake) CheckCalls(address string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkCalls[address]
}

func (f *Fake) Chain() model.Chain {
	return f.chain
}

func (f *Fake) MinConfirmations() int {
	return f.minConfirmations
}

func (f *Fake) GenerateAddress(_ context.Context, index uint32) (*chainadapter.GeneratedAddress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generateErr != nil {
		return nil, f.generateErr
	}

	out := &chainadapter.GeneratedAddress{
		Address:         fmt.Sprintf("%s-addr-%d", f.chain, index),
		DerivationIndex: index,
	}
	if f.withKeys {
		out.PrivateKey = []byte(fmt.Sprintf("%s-key-%d", f.chain, index))
	}
	return out, nil
}

func (f *Fake) CheckTransactions(ctx context.Context, deposit chainadapter.Deposit) *chainadapter.ConfirmationResult {
	address := deposit.Address
	f.mu.Lock()
	f.checkCalls[address]++
	f.deposits[address] = deposit
	delay := f.delays[address]
	result, ok := f.results[address]
	at, stamped := f.seenAt[address]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return chainadapter.NotConfirmed(ctx.Err())
		}
	}
	if !ok || (stamped && deposit.Predates(at)) {
		return chainadapter.NotConfirmed(nil)
	}
	copied := *result
	return &copied
}

func (f *Fake) Balance(_ context.Context, address string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return decimal.Zero, f.balanceErr
	}
	return f.balances[address], nil
}

func (f *Fake) ValidateAddress(address string) error {
	if address == "" {
		return errors.New("empty address")
	}
	return nil
}

func (f *Fake) ExplorerTxURL(txHash string) string {
	return "https://explorer.test/" + string(f.chain) + "/tx/" + txHash
}
