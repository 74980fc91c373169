package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Cron   CronConfig   `mapstructure:"cron"`

	DataAPI      DataAPIConfig      `mapstructure:"data_api"`
	PositionSync PositionSyncConfig `mapstructure:"position_sync"`
	TradeSync    TradeSyncConfig    `mapstructure:"trade_sync"`
	ClosedSync   ClosedSyncConfig   `mapstructure:"closed_sync"`
	ValueRefresh ValueRefreshConfig `mapstructure:"value_refresh"`
	Discovery    DiscoveryConfig    `mapstructure:"discovery"`
	PnlRollup    PnlRollupConfig    `mapstructure:"pnl_rollup"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	PositionSync string `mapstructure:"position_sync"`
	TradeSync    string `mapstructure:"trade_sync"`
	ClosedSync   string `mapstructure:"closed_sync"`
	ValueRefresh string `mapstructure:"value_refresh"`
	Discovery    string `mapstructure:"discovery"`
	PnlRollup    string `mapstructure:"pnl_rollup"`
}

type DataAPIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Shared token bucket across every worker hitting the data-api.
	RateLimitPerSec float64 `mapstructure:"rate_limit_per_sec"`
	RateBurst       int     `mapstructure:"rate_burst"`
}

type PositionSyncConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Workers        int           `mapstructure:"workers"`
	WalletDeadline time.Duration `mapstructure:"wallet_deadline"`
}

type TradeSyncConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Lower than position sync: every trade fetch walks the rate-limited
	// activity endpoint.
	Workers   int `mapstructure:"workers"`
	BatchSize int `mapstructure:"batch_size"`
}

type ClosedSyncConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	Workers   int  `mapstructure:"workers"`
	BatchSize int  `mapstructure:"batch_size"`
}

type ValueRefreshConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Workers int  `mapstructure:"workers"`
}

type DiscoveryConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Categories []string `mapstructure:"categories"`
	MinPnl     float64  `mapstructure:"min_pnl"`
	MinVolume  float64  `mapstructure:"min_volume"`
	PageLimit  int      `mapstructure:"page_limit"`
	MaxPages   int      `mapstructure:"max_pages"`
}

type PnlRollupConfig struct {
	Enabled    bool  `mapstructure:"enabled"`
	Workers    int   `mapstructure:"workers"`
	PeriodDays []int `mapstructure:"period_days"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.position_sync", "@every 10m")
	v.SetDefault("cron.trade_sync", "@every 5m")
	v.SetDefault("cron.closed_sync", "@every 15m")
	v.SetDefault("cron.value_refresh", "@every 30m")
	v.SetDefault("cron.discovery", "@every 24h")
	v.SetDefault("cron.pnl_rollup", "@every 6h")
	v.SetDefault("data_api.base_url", "https://data-api.polymarket.com")
	v.SetDefault("data_api.timeout", "30s")
	v.SetDefault("data_api.rate_limit_per_sec", 10)
	v.SetDefault("data_api.rate_burst", 10)
	v.SetDefault("position_sync.enabled", true)
	v.SetDefault("position_sync.workers", 20)
	v.SetDefault("position_sync.wallet_deadline", "2m")
	v.SetDefault("trade_sync.enabled", true)
	v.SetDefault("trade_sync.workers", 8)
	v.SetDefault("trade_sync.batch_size", 200)
	v.SetDefault("closed_sync.enabled", true)
	v.SetDefault("closed_sync.workers", 5)
	v.SetDefault("closed_sync.batch_size", 100)
	v.SetDefault("value_refresh.enabled", true)
	v.SetDefault("value_refresh.workers", 10)
	v.SetDefault("discovery.enabled", false)
	v.SetDefault("discovery.categories", []string{
		"politics", "sports", "crypto", "finance", "culture",
		"mentions", "weather", "economics", "tech",
	})
	v.SetDefault("discovery.min_pnl", 10000)
	v.SetDefault("discovery.min_volume", 50000)
	v.SetDefault("discovery.page_limit", 50)
	v.SetDefault("discovery.max_pages", 20)
	v.SetDefault("pnl_rollup.enabled", true)
	v.SetDefault("pnl_rollup.workers", 10)
	v.SetDefault("pnl_rollup.period_days", []int{30, 60, 90})

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
