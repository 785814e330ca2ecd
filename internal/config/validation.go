package config

import (
	"fmt"
	"strings"

	"quorum/internal/market"
)

func validate(c *Config) error {
	if err := c.Engine.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Models.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if err := c.Scheduler.validate(); err != nil {
		return err
	}
	return nil
}

func (e EngineConfig) validate() error {
	// The engine validates the converted form; surface its errors with the
	// section name so the failing file key is findable.
	cfg := e.ToEngine()
	if len(e.Weights) == 0 {
		// Weights may come from the unit roster instead of this section;
		// validate the rest against a placeholder set.
		cfg.Weights = map[string]float64{"roster": 1}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

func (m MarketConfig) validate() error {
	if _, err := market.ParseInterval(m.Interval); err != nil {
		return fmt.Errorf("market.interval: %w", err)
	}
	return nil
}

func (m ModelsConfig) validate() error {
	seen := make(map[string]bool, len(m.Endpoints))
	for _, e := range m.Endpoints {
		if !e.Enabled {
			continue
		}
		if strings.TrimSpace(e.Model) == "" {
			return fmt.Errorf("models.endpoints entry without model (id=%s)", e.ID)
		}
		if strings.TrimSpace(e.APIURL) == "" {
			return fmt.Errorf("models.endpoints.%s missing api_url", e.ID)
		}
		id := strings.TrimSpace(e.ID)
		if id != "" {
			if seen[id] {
				return fmt.Errorf("models.endpoints duplicate id %q", id)
			}
			seen[id] = true
		}
	}
	return nil
}

func (n NotifyConfig) validate() error {
	t := n.Telegram
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.BotToken) == "" || strings.TrimSpace(t.ChatID) == "" {
		return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
	}
	return nil
}

func (s SchedulerConfig) validate() error {
	if !s.Enabled {
		return nil
	}
	if _, err := market.ParseInterval(s.Interval); err != nil {
		return fmt.Errorf("scheduler.interval: %w", err)
	}
	if len(s.Symbols) == 0 {
		return fmt.Errorf("scheduler.symbols requires at least one symbol when enabled")
	}
	return nil
}
