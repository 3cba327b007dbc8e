package consts

const (
	BTC_DECIMALS = 8
	ETH_DECIMALS = 18
	SOL_DECIMALS = 9
	ICY_DECIMALS = 18
)

// Confirmations required before a deposit counts. Bitcoin finality is probabilistic
// so it waits longer than the account-based chains.
const (
	BTC_MIN_CONFIRMATIONS = 3
	ETH_MIN_CONFIRMATIONS = 1
	SOL_MIN_CONFIRMATIONS = 1
)

// Solana reports null confirmations once a slot is rooted.
const SOL_FINALIZED_CONFIRMATIONS = 32

const (
	BTC_EXPLORER_TX_URL         = "https://mempool.space/tx/"
	BTC_TESTNET_EXPLORER_TX_URL = "https://mempool.space/testnet/tx/"
	ETH_EXPLORER_TX_URL         = "https://etherscan.io/tx/"
	SOL_EXPLORER_TX_URL         = "https://solscan.io/tx/"
	BASE_EXPLORER_TX_URL        = "https://basescan.org/tx/"
)

const (
	JOB_CHAIN_MONITOR    = "chain_monitor"
	JOB_REWARD_PROCESSOR = "reward_processor"
	JOB_CLEANUP          = "cleanup"
)
