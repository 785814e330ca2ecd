package provider

import "context"

// ChatPayload is one chat-completion request in provider-neutral form.
type ChatPayload struct {
	System     string
	User       string
	ExpectJSON bool
	MaxTokens  int
}

// ModelProvider is a single upstream model endpoint. Disabled providers stay
// registered so their IDs remain stable in configuration.
type ModelProvider interface {
	ID() string
	Enabled() bool
	Call(ctx context.Context, payload ChatPayload) (string, error)
}
