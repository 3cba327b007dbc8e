package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/dwarvesf/icy-funding-backend/internal/types/environments"
)

type AppConfig struct {
	Environment    environments.Environment
	ApiServer      ApiServerConfig
	Database       DatabaseConfig
	Postgres       DBConnection
	Bitcoin        BitcoinConfig
	Ethereum       EthereumConfig
	Solana         SolanaConfig
	Blockchain     BlockchainConfig
	Wallet         WalletConfig
	Reward         RewardConfig
	Funding        FundingConfig
	Monitor        MonitorConfig
	Cleanup        CleanupConfig
	Schedule       ScheduleConfig
	Vault          VaultConfig
	UptimeWebhooks UptimeWebhooksConfig
}

type ApiServerConfig struct {
	Port            string
	AllowedOrigins  string
	AdminAPIKey     string
	RateLimitWindow time.Duration
	RateLimitMax    int
	EnableSwagger   bool
}

type DatabaseConfig struct {
	// postgres or sqlite
	Driver     string
	SQLitePath string
}

type DBConnection struct {
	Host string
	Port string
	User string
	Name string
	Pass string

	SSLMode string
}

type BitcoinConfig struct {
	// mainnet, testnet3 or regtest
	Network            string
	XPub               string
	BlockstreamAPIURLs []string
	RequestTimeout     time.Duration
	RequestsPerSecond  float64
}

type EthereumConfig struct {
	RPCEndpoint       string
	ExplorerAPIURL    string
	ExplorerAPIKey    string
	RequestsPerSecond float64
}

type SolanaConfig struct {
	RPCEndpoint       string
	RequestsPerSecond float64
}

// BlockchainConfig is the reward side: the ICY token on Base and the treasury paying it.
type BlockchainConfig struct {
	BaseRPCEndpoint    string
	ICYContractAddr    string
	TreasuryPrivateKey string
}

type WalletConfig struct {
	HDMasterSeed     string
	KeyEncryptionKey string
}

type RewardConfig struct {
	// ICY paid per USD funded
	Multiplier     decimal.Decimal
	MinFundingUSD  decimal.Decimal
	MaxRetries     int
	BatchSize      int
	TxTimeout      time.Duration
	PriceFeedURL   string
	PriceCacheTTL  time.Duration
	PriorityByUSD  decimal.Decimal
	GasBufferRatio decimal.Decimal
}

type FundingConfig struct {
	Expiry           time.Duration
	ChainCallTimeout time.Duration
}

type MonitorConfig struct {
	BatchSize  int
	BatchDelay time.Duration
	MaxRecords int
}

type CleanupConfig struct {
	LogRetention    time.Duration
	QueueRetention  time.Duration
	AddressCooldown time.Duration
	PoolMinSize     int
	PoolTargetSize  int
}

// ScheduleConfig holds cron specs for the background workers.
type ScheduleConfig struct {
	ChainMonitor    string
	RewardProcessor string
	Cleanup         string
}

type VaultConfig struct {
	Addr         string
	KVSecretPath string
	Role         string
}

type UptimeWebhooksConfig struct {
	ChainMonitorURL    string
	RewardProcessorURL string
	CleanupURL         string
}

// SecretSource resolves secrets by key, e.g. a Vault KV path.
type SecretSource interface {
	GetKV(secretKey string) (string, error)
}

func New() *AppConfig {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// this will not override env variables if they already exist
	godotenv.Load(".env." + env)

	return &AppConfig{
		Environment: environments.Parse(env),
		ApiServer: ApiServerConfig{
			Port:            envVarOrDefault("PORT", "8080"),
			AllowedOrigins:  os.Getenv("ALLOWED_ORIGINS"),
			AdminAPIKey:     os.Getenv("ADMIN_API_KEY"),
			RateLimitWindow: envVarAsDuration("RATE_LIMIT_WINDOW", time.Minute),
			RateLimitMax:    envVarAsInt("RATE_LIMIT_MAX", 30),
			EnableSwagger:   envVarAsBool("ENABLE_SWAGGER"),
		},
		Database: DatabaseConfig{
			Driver:     envVarOrDefault("DB_DRIVER", "postgres"),
			SQLitePath: envVarOrDefault("SQLITE_PATH", "icy-funding.db"),
		},
		Postgres: DBConnection{
			Host:    os.Getenv("DB_HOST"),
			Port:    os.Getenv("DB_PORT"),
			User:    os.Getenv("DB_USER"),
			Name:    os.Getenv("DB_NAME"),
			Pass:    os.Getenv("DB_PASS"),
			SSLMode: envVarOrDefault("DB_SSL_MODE", "disable"),
		},
		Bitcoin: BitcoinConfig{
			Network:            envVarOrDefault("BTC_NETWORK", "mainnet"),
			XPub:               os.Getenv("BTC_XPUB"),
			BlockstreamAPIURLs: envVarAsList("BTC_BLOCKSTREAM_API_URLS", []string{"https://blockstream.info/api"}),
			RequestTimeout:     envVarAsDuration("BTC_REQUEST_TIMEOUT", 15*time.Second),
			RequestsPerSecond:  envVarAsFloat("BTC_REQUESTS_PER_SECOND", 5),
		},
		Ethereum: EthereumConfig{
			RPCEndpoint:       os.Getenv("ETH_RPC_ENDPOINT"),
			ExplorerAPIURL:    os.Getenv("ETH_EXPLORER_API_URL"),
			ExplorerAPIKey:    os.Getenv("ETH_EXPLORER_API_KEY"),
			RequestsPerSecond: envVarAsFloat("ETH_REQUESTS_PER_SECOND", 4),
		},
		Solana: SolanaConfig{
			RPCEndpoint:       envVarOrDefault("SOL_RPC_ENDPOINT", "https://api.mainnet-beta.solana.com"),
			RequestsPerSecond: envVarAsFloat("SOL_REQUESTS_PER_SECOND", 5),
		},
		Blockchain: BlockchainConfig{
			BaseRPCEndpoint:    os.Getenv("BLOCKCHAIN_BASE_RPC_ENDPOINT"),
			ICYContractAddr:    os.Getenv("BLOCKCHAIN_ICY_CONTRACT_ADDR"),
			TreasuryPrivateKey: os.Getenv("BLOCKCHAIN_TREASURY_PRIVATE_KEY"),
		},
		Wallet: WalletConfig{
			HDMasterSeed:     os.Getenv("WALLET_HD_MASTER_SEED"),
			KeyEncryptionKey: os.Getenv("WALLET_KEY_ENCRYPTION_KEY"),
		},
		Reward: RewardConfig{
			Multiplier:     envVarAsDecimal("REWARD_MULTIPLIER", decimal.NewFromInt(1)),
			MinFundingUSD:  envVarAsDecimal("MIN_FUNDING_USD", decimal.NewFromInt(1)),
			MaxRetries:     envVarAsInt("MAX_REWARD_RETRIES", 3),
			BatchSize:      envVarAsInt("REWARD_BATCH_SIZE", 5),
			TxTimeout:      envVarAsDuration("REWARD_TX_TIMEOUT", 3*time.Minute),
			PriceFeedURL:   envVarOrDefault("PRICE_FEED_URL", "https://api.coingecko.com/api/v3"),
			PriceCacheTTL:  envVarAsDuration("PRICE_CACHE_TTL", time.Minute),
			PriorityByUSD:  envVarAsDecimal("REWARD_PRIORITY_USD_THRESHOLD", decimal.NewFromInt(1000)),
			GasBufferRatio: envVarAsDecimal("REWARD_GAS_BUFFER_RATIO", decimal.RequireFromString("1.2")),
		},
		Funding: FundingConfig{
			Expiry:           envVarAsDuration("FUNDING_EXPIRY", time.Hour),
			ChainCallTimeout: envVarAsDuration("CHAIN_CALL_TIMEOUT", 20*time.Second),
		},
		Monitor: MonitorConfig{
			BatchSize:  envVarAsInt("MONITOR_BATCH_SIZE", 5),
			BatchDelay: envVarAsDuration("MONITOR_BATCH_DELAY", time.Second),
			MaxRecords: envVarAsInt("MONITOR_MAX_RECORDS", 200),
		},
		Cleanup: CleanupConfig{
			LogRetention:    envVarAsDuration("LOG_RETENTION", 30*24*time.Hour),
			QueueRetention:  envVarAsDuration("QUEUE_RETENTION", 7*24*time.Hour),
			AddressCooldown: envVarAsDuration("ADDRESS_COOLDOWN", time.Hour),
			PoolMinSize:     envVarAsInt("POOL_MIN_SIZE", 5),
			PoolTargetSize:  envVarAsInt("POOL_TARGET_SIZE", 20),
		},
		Schedule: ScheduleConfig{
			ChainMonitor:    envVarOrDefault("SCHEDULE_CHAIN_MONITOR", "@every 30s"),
			RewardProcessor: envVarOrDefault("SCHEDULE_REWARD_PROCESSOR", "@every 15s"),
			Cleanup:         envVarOrDefault("SCHEDULE_CLEANUP", "@every 5m"),
		},
		Vault: VaultConfig{
			Addr:         os.Getenv("VAULT_ADDR"),
			KVSecretPath: os.Getenv("VAULT_KV_SECRET_PATH"),
			Role:         os.Getenv("VAULT_ROLE"),
		},
		UptimeWebhooks: UptimeWebhooksConfig{
			ChainMonitorURL:    os.Getenv("UPTIME_WEBHOOK_CHAIN_MONITOR_URL"),
			RewardProcessorURL: os.Getenv("UPTIME_WEBHOOK_REWARD_PROCESSOR_URL"),
			CleanupURL:         os.Getenv("UPTIME_WEBHOOK_CLEANUP_URL"),
		},
	}
}

// LoadSecrets overrides key material with values from the secret source.
// Keys missing from the source keep their env value.
func (c *AppConfig) LoadSecrets(src SecretSource) {
	targets := map[string]*string{
		"BLOCKCHAIN_TREASURY_PRIVATE_KEY": &c.Blockchain.TreasuryPrivateKey,
		"WALLET_HD_MASTER_SEED":           &c.Wallet.HDMasterSeed,
		"WALLET_KEY_ENCRYPTION_KEY":       &c.Wallet.KeyEncryptionKey,
		"BTC_XPUB":                        &c.Bitcoin.XPub,
		"ADMIN_API_KEY":                   &c.ApiServer.AdminAPIKey,
	}
	for key, target := range targets {
		v, err := src.GetKV(key)
		if err != nil || v == "" {
			continue
		}
		*target = v
	}
}

func envVarOrDefault(envName, def string) string {
	if v := os.Getenv(envName); v != "" {
		return v
	}
	return def
}

func envVarAsInt(envName string, def int) int {
	valueStr := os.Getenv(envName)
	if valueStr == "" {
		return def
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		panic(err)
	}

	return value
}

func envVarAsFloat(envName string, def float64) float64 {
	valueStr := os.Getenv(envName)
	if valueStr == "" {
		return def
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		panic(err)
	}

	return value
}

func envVarAsDuration(envName string, def time.Duration) time.Duration {
	valueStr := os.Getenv(envName)
	if valueStr == "" {
		return def
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		panic(err)
	}

	return value
}

func envVarAsDecimal(envName string, def decimal.Decimal) decimal.Decimal {
	valueStr := os.Getenv(envName)
	if valueStr == "" {
		return def
	}
	return decimal.RequireFromString(valueStr)
}

func envVarAsBool(envName string) bool {
	valueStr := os.Getenv(envName)
	return valueStr == "true"
}

// envVarAsList splits a comma separated value, dropping blanks and duplicates.
func envVarAsList(envName string, def []string) []string {
	valueStr := os.Getenv(envName)
	if valueStr == "" {
		return def
	}

	seen := map[string]bool{}
	out := []string{}
	for _, part := range strings.Split(valueStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	if len(out) == 0 {
		return def
	}
	return out
}
