// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/launchpad/internal/health"
	"github.com/rovshanmuradov/launchpad/internal/state"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	AdminAddress string `mapstructure:"admin_address"`
	BypassAuth   bool   `mapstructure:"bypass_auth"`
	TaxAddress   string `mapstructure:"tax_address"`
	PoolAddress  string `mapstructure:"pool_address"`
	ProgramID    string `mapstructure:"program_id"`

	CreationFee  uint64 `mapstructure:"creation_fee"`
	TradeFeeRate string `mapstructure:"trade_fee_rate"`

	Curve  CurveConfig  `mapstructure:"curve"`
	Health HealthConfig `mapstructure:"health"`

	ListenAddr   string `mapstructure:"listen_addr"`
	JournalFile  string `mapstructure:"journal_file"`
	EventBuffer  int    `mapstructure:"event_buffer"`
	DebugLogging bool   `mapstructure:"debug_logging"`
	LogFormat    string `mapstructure:"log_format"`
	LogFile      string `mapstructure:"log_file"`
}

type CurveConfig struct {
	K                         string `mapstructure:"k"`
	VirtualTokenReserves      uint64 `mapstructure:"virtual_token_reserves"`
	SupplyCap                 uint64 `mapstructure:"supply_cap"`
	InitialSupply             uint64 `mapstructure:"initial_supply"`
	MigrationReserveThreshold uint64 `mapstructure:"migration_reserve_threshold"`
	PoolSeedTokens            uint64 `mapstructure:"pool_seed_tokens"`
}

type HealthConfig struct {
	RPCURL             string `mapstructure:"rpc_url"`
	TimeoutMs          int    `mapstructure:"timeout_ms"`
	Retries            int    `mapstructure:"retries"`
	RetryIntervalMs    int    `mapstructure:"retry_interval_ms"`
	StalenessThreshold int    `mapstructure:"staleness_threshold"` // seconds
	PollInterval       int    `mapstructure:"poll_interval"`       // seconds
}

const (
	DefaultProgramID            = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	DefaultCreationFee          = 20_000_000
	DefaultTradeFeeRate         = "0.01"
	DefaultVirtualTokenReserves = 1_073_000_000_000_000
	DefaultSupplyCap            = 793_100_000_000_000
	DefaultInitialSupply        = 1_000_000_000_000_000
	DefaultPoolSeedTokens       = 206_900_000_000_000
	DefaultListenAddr           = ":8080"
	DefaultEventBuffer          = 256
)

// DefaultK is 30 SOL of virtual settlement times the virtual token reserves.
var DefaultK = new(uint256.Int).Mul(
	uint256.NewInt(30_000_000_000),
	uint256.NewInt(DefaultVirtualTokenReserves),
).Dec()

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"program_id":                        DefaultProgramID,
		"creation_fee":                      DefaultCreationFee,
		"trade_fee_rate":                    DefaultTradeFeeRate,
		"curve.k":                           DefaultK,
		"curve.virtual_token_reserves":      DefaultVirtualTokenReserves,
		"curve.supply_cap":                  DefaultSupplyCap,
		"curve.initial_supply":              DefaultInitialSupply,
		"curve.migration_reserve_threshold": 0,
		"curve.pool_seed_tokens":            DefaultPoolSeedTokens,
		"health.timeout_ms":                 int(health.DefaultTimeout / time.Millisecond),
		"health.retries":                    health.DefaultRetries,
		"health.retry_interval_ms":          500,
		"health.staleness_threshold":        int(health.DefaultStalenessThreshold / time.Second),
		"health.poll_interval":              int(health.DefaultPollInterval / time.Second),
		"listen_addr":                       DefaultListenAddr,
		"event_buffer":                      DefaultEventBuffer,
		"log_format":                        "pretty",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("LAUNCHPAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.AdminAddress == "" {
		return errors.New("missing admin_address in configuration")
	}
	if _, err := solana.PublicKeyFromBase58(cfg.AdminAddress); err != nil {
		return fmt.Errorf("invalid admin_address: %w", err)
	}
	if cfg.TaxAddress == "" {
		return errors.New("missing tax_address in configuration")
	}
	for name, addr := range map[string]string{
		"tax_address":  cfg.TaxAddress,
		"pool_address": cfg.PoolAddress,
		"program_id":   cfg.ProgramID,
	} {
		if addr == "" {
			continue
		}
		if _, err := solana.PublicKeyFromBase58(addr); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if _, err := TradeFeeBps(cfg.TradeFeeRate); err != nil {
		return err
	}
	if _, err := ParseK(cfg.Curve.K); err != nil {
		return err
	}
	if cfg.Health.RPCURL != "" {
		if err := validateURL(cfg.Health.RPCURL, "http"); err != nil {
			return errors.New("invalid health.rpc_url protocol")
		}
	}
	if err := validateNumericParams(cfg); err != nil {
		return err
	}
	return nil
}

func validateNumericParams(cfg *Config) error {
	if cfg.Health.TimeoutMs <= 0 {
		return errors.New("invalid health.timeout_ms")
	}
	if cfg.Health.Retries <= 0 {
		return errors.New("invalid health.retries")
	}
	if cfg.Health.RetryIntervalMs < 0 {
		return errors.New("invalid health.retry_interval_ms")
	}
	if cfg.Health.StalenessThreshold <= 0 {
		return errors.New("invalid health.staleness_threshold")
	}
	if cfg.Health.PollInterval <= 0 {
		return errors.New("invalid health.poll_interval")
	}
	if cfg.EventBuffer < 0 {
		return errors.New("invalid event_buffer")
	}
	if cfg.Curve.InitialSupply < cfg.Curve.SupplyCap {
		return errors.New("curve.initial_supply below curve.supply_cap")
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

// TradeFeeBps converts a fractional fee rate such as "0.01" to basis points.
// Rates finer than one basis point are rejected rather than rounded.
func TradeFeeBps(rate string) (uint64, error) {
	d, err := decimal.NewFromString(rate)
	if err != nil {
		return 0, fmt.Errorf("invalid trade_fee_rate %q: %w", rate, err)
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return 0, fmt.Errorf("trade_fee_rate %s must be in [0, 1)", rate)
	}
	bps := d.Shift(4)
	if !bps.Equal(bps.Truncate(0)) {
		return 0, fmt.Errorf("trade_fee_rate %s is finer than one basis point", rate)
	}
	return uint64(bps.IntPart()), nil
}

// ParseK parses the curve invariant from its decimal string form.
func ParseK(s string) (*uint256.Int, error) {
	k, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid curve.k %q: %w", s, err)
	}
	if k.IsZero() {
		return nil, errors.New("curve.k must be positive")
	}
	return k, nil
}

// Params builds the deployment parameters.
func (c *Config) Params() (state.Params, error) {
	programID, err := solana.PublicKeyFromBase58(c.ProgramID)
	if err != nil {
		return state.Params{}, fmt.Errorf("invalid program_id: %w", err)
	}
	k, err := ParseK(c.Curve.K)
	if err != nil {
		return state.Params{}, err
	}
	p := state.Params{
		ProgramID:                 programID,
		InitialSupply:             c.Curve.InitialSupply,
		VirtualTokenReserves:      c.Curve.VirtualTokenReserves,
		K:                         k,
		SupplyCap:                 c.Curve.SupplyCap,
		MigrationReserveThreshold: c.Curve.MigrationReserveThreshold,
		PoolSeedTokens:            c.Curve.PoolSeedTokens,
	}
	return p, p.Validate()
}

// Fees builds the initial fee schedule.
func (c *Config) Fees() (types.FeeSchedule, error) {
	bps, err := TradeFeeBps(c.TradeFeeRate)
	if err != nil {
		return types.FeeSchedule{}, err
	}
	return types.FeeSchedule{CreationFee: c.CreationFee, TradeFeeBps: bps}, nil
}

// HealthConfig converts the liveness check settings.
func (c *Config) HealthConfig() health.Config {
	return health.Config{
		Timeout:            time.Duration(c.Health.TimeoutMs) * time.Millisecond,
		Retries:            c.Health.Retries,
		RetryInterval:      time.Duration(c.Health.RetryIntervalMs) * time.Millisecond,
		StalenessThreshold: time.Duration(c.Health.StalenessThreshold) * time.Second,
	}
}

// PollInterval is how often the watcher checks the network.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Health.PollInterval) * time.Second
}

// Addresses parses the admin, tax and optional pool addresses.
func (c *Config) Addresses() (adminAddr, tax, pool solana.PublicKey, err error) {
	if adminAddr, err = solana.PublicKeyFromBase58(c.AdminAddress); err != nil {
		return adminAddr, tax, pool, fmt.Errorf("invalid admin_address: %w", err)
	}
	if tax, err = solana.PublicKeyFromBase58(c.TaxAddress); err != nil {
		return adminAddr, tax, pool, fmt.Errorf("invalid tax_address: %w", err)
	}
	if c.PoolAddress != "" {
		if pool, err = solana.PublicKeyFromBase58(c.PoolAddress); err != nil {
			return adminAddr, tax, pool, fmt.Errorf("invalid pool_address: %w", err)
		}
	}
	return adminAddr, tax, pool, nil
}
