package config

const (
	defaultAppEnv         = "dev"
	defaultAppLogLevel    = "info"
	defaultAppHTTPAddr    = ":9985"
	defaultAppLogPath     = "/data/logs/quorum.log"
	defaultAppUnitLogPath = "/data/logs/quorum-units.log"

	defaultMarketName     = "binance"
	defaultMarketREST     = "https://fapi.binance.com"
	defaultMarketInterval = "15m"
	defaultKlineLimit     = 200
	defaultMarketTimeout  = 15

	defaultModelTimeout = 120

	defaultRosterPath = "configs/units.yaml"

	defaultDecisionLogPath = "/data/quorum/decisions.db"
	defaultOrderLogPath    = "/data/quorum/orders.db"

	defaultSchedulerInterval = "15m"

	defaultAccountEquity      = 10000
	defaultAccountBuyingPower = 10000
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Models.applyDefaults(keys)
	c.Units.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Scheduler.applyDefaults(keys)
	c.Account.applyDefaults(keys)
}

func (a *AccountConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "account.equity",
			need:  func() bool { return a.Equity <= 0 },
			apply: func() { a.Equity = defaultAccountEquity },
		},
		fieldDefault{
			key:   "account.buying_power",
			need:  func() bool { return a.BuyingPower <= 0 },
			apply: func() { a.BuyingPower = defaultAccountBuyingPower },
		},
	)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.unit_log_path", &a.UnitLogPath, defaultAppUnitLogPath),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market.name", &m.Name, defaultMarketName),
		stringFieldDefault("market.rest_base_url", &m.RESTBaseURL, defaultMarketREST),
		stringFieldDefault("market.interval", &m.Interval, defaultMarketInterval),
		fieldDefault{
			key:   "market.kline_limit",
			need:  func() bool { return m.KlineLimit <= 0 },
			apply: func() { m.KlineLimit = defaultKlineLimit },
		},
		fieldDefault{
			key:   "market.timeout_seconds",
			need:  func() bool { return m.TimeoutSeconds <= 0 },
			apply: func() { m.TimeoutSeconds = defaultMarketTimeout },
		},
	)
}

func (m *ModelsConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "models.timeout_seconds",
			need:  func() bool { return m.TimeoutSeconds <= 0 },
			apply: func() { m.TimeoutSeconds = defaultModelTimeout },
		},
	)
}

func (u *UnitsConfig) applyDefaults(keys keySet) {
	if u == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("units.roster_path", &u.RosterPath, defaultRosterPath),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.decision_log_path", &s.DecisionLogPath, defaultDecisionLogPath),
		stringFieldDefault("store.order_log_path", &s.OrderLogPath, defaultOrderLogPath),
	)
}

func (s *SchedulerConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("scheduler.interval", &s.Interval, defaultSchedulerInterval),
	)
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && *target == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
