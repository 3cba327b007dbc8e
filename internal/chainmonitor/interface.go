package chainmonitor

import (
	"context"

	"github.com/dwarvesf/icy-funding-backend/internal/chainadapter"
	"github.com/dwarvesf/icy-funding-backend/internal/model"
)

type IChainMonitor interface {
	CheckFundingStatus(ctx context.Context, record *model.FundingRecord) *chainadapter.ConfirmationResult
	BatchCheckFundings(ctx context.Context, records []*model.FundingRecord) []*FundingCheckResult

	// ConfirmFunding reports false when the record was already confirmed elsewhere.
	ConfirmFunding(ctx context.Context, record *model.FundingRecord, result *chainadapter.ConfirmationResult) (bool, error)

	// Refresh checks one pending record now and confirms it when the deposit is final.
	Refresh(ctx context.Context, record *model.FundingRecord) (*chainadapter.ConfirmationResult, error)

	RunCycle(ctx context.Context) (*CycleResult, error)
}

type FundingCheckResult struct {
	FundingID string                           `json:"funding_id"`
	Chain     model.Chain                      `json:"chain"`
	Result    *chainadapter.ConfirmationResult `json:"-"`
	Confirmed bool                             `json:"confirmed"`
	Amount    string                           `json:"amount"`
	TxHash    string                           `json:"tx_hash,omitempty"`
	Error     string                           `json:"error,omitempty"`

	Record *model.FundingRecord `json:"-"`
}

type CycleResult struct {
	Checked   int                   `json:"checked"`
	Confirmed int                   `json:"confirmed"`
	Pending   int                   `json:"pending"`
	Errors    int                   `json:"errors"`
	Results   []*FundingCheckResult `json:"results"`
}
