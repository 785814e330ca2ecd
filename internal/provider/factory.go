package provider

import (
	"fmt"
	"strings"
	"time"

	"quorum/internal/logger"
)

// ModelCfg is one configured model endpoint.
type ModelCfg struct {
	ID       string
	Provider string
	APIURL   string
	APIKey   string
	Model    string
	Enabled  bool
	Headers  map[string]string
}

// BuildFromConfig turns model configs into providers, skipping disabled ones.
// Missing IDs are derived from provider and model name so roster references
// stay resolvable.
func BuildFromConfig(models []ModelCfg, timeout time.Duration) []ModelProvider {
	out := make([]ModelProvider, 0, len(models))
	for _, m := range models {
		if !m.Enabled {
			continue
		}
		id := strings.TrimSpace(m.ID)
		if id == "" {
			base := strings.TrimSpace(m.Provider)
			if base == "" {
				base = "provider"
			}
			if model := strings.TrimSpace(m.Model); model != "" {
				id = fmt.Sprintf("%s:%s", base, model)
			} else {
				id = base
			}
			logger.Warnf("model config without id, generated %q", id)
		}
		client := &OpenAIChatClient{
			BaseURL:      m.APIURL,
			APIKey:       m.APIKey,
			Model:        m.Model,
			ExtraHeaders: m.Headers,
		}
		if timeout > 0 {
			client.Timeout = timeout
		}
		out = append(out, NewOpenAIModelProvider(id, true, client))
	}
	return out
}

// ByID indexes providers for roster lookups.
func ByID(providers []ModelProvider) map[string]ModelProvider {
	m := make(map[string]ModelProvider, len(providers))
	for _, p := range providers {
		m[p.ID()] = p
	}
	return m
}
