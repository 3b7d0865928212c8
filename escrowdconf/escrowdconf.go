// Package escrowdconf loads the coordinator's configuration: struct-tagged
// flag definitions in the `jessevdk/go-flags` idiom, whose `env` tags also
// read environment variables, plus an optional TOML overlay read through
// `spf13/viper`. Flags take precedence over environment variables; the
// file only fills string fields that are still empty after both.
package escrowdconf

import (
	"fmt"

	flags "github.com/jessevdk/go-flags"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/p2pmmx/escrowd/escrowerr"
)

// ChainRPC holds the RPC endpoint configured for one chain.
type ChainRPC struct {
	Chain string `long:"chain" description:"chain identifier (BSC, ETH, POLYGON, TRON)"`
	URL   string `long:"url" description:"JSON-RPC (or, for Tron, full-node HTTP) endpoint"`
}

// Config is the coordinator's full runtime configuration, covering every
// variable named in the external interfaces section: bot credentials,
// persistence location, per-chain RPC endpoints, hot wallet key material,
// trade amount bounds, deposit address TTL, and fee wallet addresses.
type Config struct {
	// BotToken authenticates the chat-platform client.
	BotToken string `long:"botoken" env:"BOT_TOKEN" description:"chat platform bot token"`

	// AdminUsername and AdminUserID identify the operator account allowed
	// to run admin-only commands and reach escrowrpc.
	AdminUsername string `long:"adminusername" env:"ADMIN_USERNAME" description:"operator username"`
	AdminUserID   string `long:"adminuserid" env:"ADMIN_USER_ID" description:"operator user id"`

	// DBURI is the escrowdb database file path.
	DBURI string `long:"dburi" env:"DB_URI" default:"escrowd.db" description:"escrow database file path"`

	// EVMRPCURLs holds one RPC endpoint per EVM chain (BSC, ETH, POLYGON).
	EVMRPCURLs []ChainRPC `group:"evmrpc"`

	// TronRPCURL is the Tron full-node HTTP endpoint.
	TronRPCURL string `long:"tronrpcurl" env:"TRON_RPC_URL" description:"tron full node url"`

	// HotWalletPrivateKey signs EVM release/refund/withdraw transactions.
	HotWalletPrivateKey string `long:"hotwalletprivatekey" env:"HOT_WALLET_PRIVATE_KEY" description:"evm hot wallet private key"`

	// TRCPrivateKey signs Tron release/refund/withdraw transactions.
	TRCPrivateKey string `long:"trcprivatekey" env:"TRC_PRIVATE_KEY" description:"tron hot wallet private key"`

	// EscrowFeePercent and EscrowFeeBPS are the fee tier every new trade
	// is assigned (the tier its vault and room are resolved against);
	// both must agree per vaultregistry's invariant.
	EscrowFeePercent decimal.Decimal `long:"escrowfeepercent" env:"ESCROW_FEE_PERCENT" description:"default fee percent, e.g. 0.25"`
	EscrowFeeBPS     uint32          `long:"escrowfeebps" env:"ESCROW_FEE_BPS" description:"default fee in basis points, e.g. 25"`

	// MinTradeAmount and MaxTradeAmount bound the wizard's step1_amount
	// acceptance rule.
	MinTradeAmount decimal.Decimal `long:"mintradeamount" env:"MIN_TRADE_AMOUNT" description:"minimum trade quantity"`
	MaxTradeAmount decimal.Decimal `long:"maxtradeamount" env:"MAX_TRADE_AMOUNT" description:"maximum trade quantity"`

	// DepositAddressTTLMinutes bounds how long a minted deposit address
	// display is considered current before the wizard must re-render it.
	DepositAddressTTLMinutes uint32 `long:"depositaddressttlminutes" env:"DEPOSIT_ADDRESS_TTL_MINUTES" default:"30" description:"deposit address display ttl in minutes"`

	// FeeWallet1/2/3 mirror the vault contract's fee distribution wallets.
	FeeWallet1 string `long:"feewallet1" env:"FEE_WALLET_1" description:"first fee distribution wallet"`
	FeeWallet2 string `long:"feewallet2" env:"FEE_WALLET_2" description:"second fee distribution wallet"`
	FeeWallet3 string `long:"feewallet3" env:"FEE_WALLET_3" description:"third fee distribution wallet"`

	// AllowedMainGroupID restricts the bot's admin surface to a single
	// operator-controlled group.
	AllowedMainGroupID string `long:"allowedmaingroupid" env:"ALLOWED_MAIN_GROUP_ID" description:"chat group id allowed to invoke admin commands"`

	// ConfigFile, when set, is an optional TOML overlay read via viper
	// after flag parsing; it supplies values only for string fields that
	// flags, environment and defaults left empty.
	ConfigFile string `long:"configfile" description:"optional TOML config overlay"`
}

// Load parses args with go-flags (command-line flags over the `env`-tagged
// environment variables), then, when ConfigFile is set, lets the file fill
// each of its string keys whose field is still empty. A field that already
// holds a value, including one from a `default` tag such as DBURI, keeps it.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, escrowerr.Validationf("parse config flags: %v", err)
	}

	if cfg.ConfigFile != "" {
		if err := overlayFromFile(cfg); err != nil {
			return nil, err
		}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overlayFromFile(cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(cfg.ConfigFile)
	if err := v.ReadInConfig(); err != nil {
		return escrowerr.Validationf("read config file %s: %v", cfg.ConfigFile, err)
	}

	setIfEmpty(&cfg.BotToken, v, "bot_token")
	setIfEmpty(&cfg.AdminUsername, v, "admin_username")
	setIfEmpty(&cfg.AdminUserID, v, "admin_user_id")
	setIfEmpty(&cfg.DBURI, v, "db_uri")
	setIfEmpty(&cfg.TronRPCURL, v, "tron_rpc_url")
	setIfEmpty(&cfg.HotWalletPrivateKey, v, "hot_wallet_private_key")
	setIfEmpty(&cfg.TRCPrivateKey, v, "trc_private_key")
	setIfEmpty(&cfg.FeeWallet1, v, "fee_wallet_1")
	setIfEmpty(&cfg.FeeWallet2, v, "fee_wallet_2")
	setIfEmpty(&cfg.FeeWallet3, v, "fee_wallet_3")
	setIfEmpty(&cfg.AllowedMainGroupID, v, "allowed_main_group_id")
	return nil
}

func setIfEmpty(field *string, v *viper.Viper, key string) {
	if *field == "" && v.IsSet(key) {
		*field = v.GetString(key)
	}
}

func validate(cfg *Config) error {
	if cfg.BotToken == "" {
		return escrowerr.Validationf("BOT_TOKEN is required")
	}
	if cfg.AdminUserID == "" {
		return escrowerr.Validationf("ADMIN_USER_ID is required")
	}
	if cfg.MinTradeAmount.IsPositive() && cfg.MaxTradeAmount.IsPositive() &&
		cfg.MinTradeAmount.GreaterThan(cfg.MaxTradeAmount) {
		return escrowerr.Validationf("MIN_TRADE_AMOUNT (%s) exceeds MAX_TRADE_AMOUNT (%s)",
			cfg.MinTradeAmount, cfg.MaxTradeAmount)
	}
	expectedBPS := cfg.EscrowFeePercent.Mul(decimal.NewFromInt(100))
	if cfg.EscrowFeeBPS != 0 && !expectedBPS.Equal(decimal.NewFromInt32(int32(cfg.EscrowFeeBPS))) {
		return escrowerr.Validationf("ESCROW_FEE_PERCENT %s disagrees with ESCROW_FEE_BPS %d",
			cfg.EscrowFeePercent, cfg.EscrowFeeBPS)
	}
	return nil
}

// EVMRPCURL returns the configured RPC endpoint for the named chain, or
// an error if none was configured.
func (c *Config) EVMRPCURL(chainName string) (string, error) {
	for _, entry := range c.EVMRPCURLs {
		if entry.Chain == chainName {
			return entry.URL, nil
		}
	}
	return "", fmt.Errorf("no rpc url configured for chain %s", chainName)
}
