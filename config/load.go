package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"stocksim-go/cost"
	"stocksim-go/credit"
	"stocksim-go/infrastructure/logger"
	"stocksim-go/loan"
	"stocksim-go/order"
)

// AppConfig holds the main runtime configuration.
// 所有参数在一个会话内不可变，重新加载的配置只在新会话生效。
type AppConfig struct {
	Env      string                 `yaml:"env"`
	GameMode string                 `yaml:"gameMode"`
	Modes    map[string]cost.Params `yaml:"modes"`

	Credit   credit.CollateralParams `yaml:"credit"`
	Interest credit.InterestParams   `yaml:"interest"`
	Loan     loan.Params             `yaml:"loan"`
	Score    credit.ScoreParams      `yaml:"score"`
	Orders   order.Params            `yaml:"orders"`

	Session SessionConfig  `yaml:"session"`
	Logging logger.Config  `yaml:"logging"`
	Storage StorageConfig  `yaml:"storage"`
	Server  ServerConfig   `yaml:"server"`
	Feed    FeedConfig     `yaml:"feed"`
	Alerts  AlertConfig    `yaml:"alerts"`
	Symbols []SymbolConfig `yaml:"symbols"`
}

// SessionConfig 新会话的初始资金与周期节奏。
type SessionConfig struct {
	InitialCash   float64 `yaml:"initialCash"`
	CycleSchedule string  `yaml:"cycleSchedule"` // cron 表达式，例如 "@every 1s"
	SaveSchedule  string  `yaml:"saveSchedule"`  // 定期落盘快照
	HistoryLimit  int     `yaml:"historyLimit"`
}

type StorageConfig struct {
	SnapshotPath string `yaml:"snapshotPath"`
	HistoryDB    string `yaml:"historyDB"` // 为空时不落库
}

type ServerConfig struct {
	MetricsAddr string `yaml:"metricsAddr"`
	WSAddr      string `yaml:"wsAddr"`
}

// FeedConfig 随机游走行情参数。
type FeedConfig struct {
	Seed       int64   `yaml:"seed"`
	Volatility float64 `yaml:"volatility"` // 单周期价格变动的标准差（比例）
	Drift      float64 `yaml:"drift"`
}

type AlertConfig struct {
	HistorySize int  `yaml:"historySize"`
	LogChannel  bool `yaml:"logChannel"`
}

// SymbolConfig 可交易标的的初始价格与市值，以及可选的下单限制（tickSize、minShares 等）。
type SymbolConfig struct {
	Symbol    string  `yaml:"symbol"`
	Price     float64 `yaml:"price"`
	MarketCap float64 `yaml:"marketCap"`

	Constraints order.SymbolConstraints `yaml:",inline"`
}

// Default 返回一份完整且可通过校验的配置。
func Default() AppConfig {
	return AppConfig{
		Env:      "dev",
		GameMode: "realistic",
		Modes: map[string]cost.Params{
			"sandbox": {},
			"realistic": {
				SpreadPct: 0.002, SlippageCoef: 0.0001, FeeFixed: 1, FeePct: 0.0005, OrderDelayCycles: 1,
			},
			"hardcore": {
				SpreadPct: 0.006, SlippageCoef: 0.0005, FeeFixed: 5, FeePct: 0.0015, OrderDelayCycles: 3,
			},
		},
		Credit: credit.CollateralParams{
			BaseCollateralRate:  0.25,
			LargeCapThreshold:   1e11,
			LargeCapCoef:        0.7,
			SmallCapCoef:        0.5,
			CreditLineStep:      1000,
			MaxCreditMultiplier: 2.5,
		},
		Interest: credit.InterestParams{
			BaseRate:               0.03,
			MinRate:                0.01,
			MaxRiskAdjustment:      0.01,
			MinTradesForFullEffect: 10,
			LossThreshold:          -1000,
			LossPenaltyPer1000:     0.005,
			MaxLossPenalty:         0.02,
			UtilizationTiers: []credit.UtilizationTier{
				{Threshold: 0.5, Surcharge: 0.005},
				{Threshold: 0.75, Surcharge: 0.01},
				{Threshold: 1.0, Surcharge: 0.02},
			},
			ExtraLoanPenalty:        0.005,
			DurationStepCycles:      10,
			DurationDiscountPerStep: 0.0025,
			MaxDurationDiscount:     0.01,
		},
		Loan: loan.Params{
			MaxConcurrentLoans:     3,
			MinDurationCycles:      10,
			MaxDurationCycles:      100,
			OriginationFeePct:      0.01,
			InterestIntervalCycles: 10,
			DueWarningCycles:       3,
			MinCreditScore:         20,
		},
		Score: credit.ScoreParams{
			Min: 0, Max: 100, Default: 50,
			EarlyRepayment: 3, OnTimeRepayment: 2, AutoRepaid: 1,
			OverduePenalty: 2, ProgressiveThreshold: 5, MaxPenaltyMultiplier: 5,
		},
		Orders: order.Params{
			DefaultValidityCycles:     10,
			ShortCollateralRatio:      1.5,
			OneOrderPerSymbolPerCycle: true,
		},
		Session: SessionConfig{
			InitialCash:   10000,
			CycleSchedule: "@every 1s",
			SaveSchedule:  "@every 30s",
			HistoryLimit:  500,
		},
		Logging: logger.DefaultConfig(),
		Storage: StorageConfig{
			SnapshotPath: "data/session.json",
			HistoryDB:    "data/history.db",
		},
		Server: ServerConfig{
			MetricsAddr: ":9102",
			WSAddr:      ":9103",
		},
		Feed:   FeedConfig{Seed: 1, Volatility: 0.01},
		Alerts: AlertConfig{HistorySize: 200, LogChannel: true},
		Symbols: []SymbolConfig{
			{Symbol: "ACME", Price: 100, MarketCap: 2e11, Constraints: order.SymbolConstraints{TickSize: 0.01, MinShares: 1}},
			{Symbol: "BOLT", Price: 25, MarketCap: 8e9, Constraints: order.SymbolConstraints{TickSize: 0.01, MinShares: 1}},
		},
	}
}

// Cost 返回当前游戏模式的成本参数。
func (c AppConfig) Cost() cost.Params {
	return c.Modes[c.GameMode]
}

// SymbolConstraints 返回设置了下单限制的标的。
func (c AppConfig) SymbolConstraints() map[string]order.SymbolConstraints {
	out := make(map[string]order.SymbolConstraints)
	for _, s := range c.Symbols {
		if s.Constraints != (order.SymbolConstraints{}) {
			out[s.Symbol] = s.Constraints
		}
	}
	return out
}

// LoanConfig 组装贷款台账配置。
func (c AppConfig) LoanConfig() loan.Config {
	return loan.Config{Loan: c.Loan, Score: c.Score, Interest: c.Interest}
}

// Load reads YAML config from path, overlays it onto Default() and validates.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return cfg, ErrInvalid("config file is empty")
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides deployment fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	ApplyEnv(&cfg)
	return cfg, Validate(cfg)
}

// ApplyEnv 用环境变量覆盖部署相关字段。
func ApplyEnv(cfg *AppConfig) {
	if v := os.Getenv("SIM_GAME_MODE"); v != "" {
		cfg.GameMode = v
	}
	if v := os.Getenv("SIM_HISTORY_DB"); v != "" {
		cfg.Storage.HistoryDB = v
	}
	if v := os.Getenv("SIM_SNAPSHOT_PATH"); v != "" {
		cfg.Storage.SnapshotPath = v
	}
	if v := os.Getenv("SIM_METRICS_ADDR"); v != "" {
		cfg.Server.MetricsAddr = v
	}
}
