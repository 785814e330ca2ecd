package config

import (
	"time"

	"quorum/internal/engine"
	"quorum/internal/provider"
)

// Config is the root configuration document.
type Config struct {
	App       AppConfig       `toml:"app"`
	Market    MarketConfig    `toml:"market"`
	Engine    EngineConfig    `toml:"engine"`
	Models    ModelsConfig    `toml:"models"`
	Units     UnitsConfig     `toml:"units"`
	Store     StoreConfig     `toml:"store"`
	Notify    NotifyConfig    `toml:"notify"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Account   AccountConfig   `toml:"account"`
}

// AccountConfig sizes the static paper account used when no external account
// service is attached.
type AccountConfig struct {
	Equity      float64 `toml:"equity"`
	BuyingPower float64 `toml:"buying_power"`
}

type AppConfig struct {
	Env         string `toml:"env"`
	LogLevel    string `toml:"log_level"`
	HTTPAddr    string `toml:"http_addr"`
	LogPath     string `toml:"log_path"`
	UnitLogPath string `toml:"unit_log_path"`
	UnitDump    bool   `toml:"unit_dump_payload"`
}

type MarketConfig struct {
	Name           string `toml:"name"`
	RESTBaseURL    string `toml:"rest_base_url"`
	ProxyURL       string `toml:"proxy_url"`
	Interval       string `toml:"interval"`
	KlineLimit     int    `toml:"kline_limit"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// EngineConfig mirrors engine.Config in file-friendly units.
type EngineConfig struct {
	Weights                map[string]float64 `toml:"weights"`
	PerUnitTimeoutSeconds  int                `toml:"per_unit_timeout_seconds"`
	SilenceConfidenceFloor float64            `toml:"silence_confidence_floor"`
	SilenceDivergence      float64            `toml:"silence_divergence"`
	RiskPerTrade           float64            `toml:"risk_per_trade"`
	ExposureCap            float64            `toml:"exposure_cap"`
	DailyLossFloor         float64            `toml:"daily_loss_floor"`
	MaxLossLimit           float64            `toml:"max_loss_limit"`
	MinDataQuality         float64            `toml:"min_data_quality"`
}

// ToEngine converts the section into the engine's validated form.
func (e EngineConfig) ToEngine() engine.Config {
	cfg := engine.DefaultConfig()
	if len(e.Weights) > 0 {
		cfg.Weights = e.Weights
	}
	if e.PerUnitTimeoutSeconds > 0 {
		cfg.PerUnitTimeout = time.Duration(e.PerUnitTimeoutSeconds) * time.Second
		cfg.DecisionDeadline = cfg.PerUnitTimeout
	}
	if e.SilenceConfidenceFloor > 0 {
		cfg.SilenceConfidenceFloor = e.SilenceConfidenceFloor
	}
	if e.SilenceDivergence > 0 {
		cfg.SilenceDivergence = e.SilenceDivergence
	}
	if e.RiskPerTrade > 0 {
		cfg.RiskPerTrade = e.RiskPerTrade
	}
	if e.ExposureCap > 0 {
		cfg.ExposureCap = e.ExposureCap
	}
	if e.DailyLossFloor < 0 {
		cfg.DailyLossFloor = e.DailyLossFloor
	}
	if e.MaxLossLimit > 0 {
		cfg.MaxLossLimit = e.MaxLossLimit
	}
	if e.MinDataQuality > 0 {
		cfg.MinDataQuality = e.MinDataQuality
	}
	return cfg
}

type ModelsConfig struct {
	TimeoutSeconds int          `toml:"timeout_seconds"`
	Endpoints      []ModelEntry `toml:"endpoints"`
}

type ModelEntry struct {
	ID       string            `toml:"id"`
	Provider string            `toml:"provider"`
	APIURL   string            `toml:"api_url"`
	APIKey   string            `toml:"api_key"`
	Model    string            `toml:"model"`
	Enabled  bool              `toml:"enabled"`
	Headers  map[string]string `toml:"headers"`
}

// ToProvider converts endpoint entries into the provider factory's form.
func (m ModelsConfig) ToProvider() []provider.ModelCfg {
	out := make([]provider.ModelCfg, 0, len(m.Endpoints))
	for _, e := range m.Endpoints {
		out = append(out, provider.ModelCfg{
			ID:       e.ID,
			Provider: e.Provider,
			APIURL:   e.APIURL,
			APIKey:   e.APIKey,
			Model:    e.Model,
			Enabled:  e.Enabled,
			Headers:  e.Headers,
		})
	}
	return out
}

type UnitsConfig struct {
	RosterPath string `toml:"roster_path"`
	HotReload  bool   `toml:"hot_reload"`
}

type StoreConfig struct {
	DecisionLogPath string `toml:"decision_log_path"`
	OrderLogPath    string `toml:"order_log_path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type SchedulerConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval string   `toml:"interval"`
	Symbols  []string `toml:"symbols"`
}
