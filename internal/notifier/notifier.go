package notifier

// TextNotifier is a minimal text notification interface so components can
// push alerts without importing a concrete transport.
type TextNotifier interface {
	SendText(text string) error
}

// Noop discards everything. Used when notifications are disabled.
type Noop struct{}

func (Noop) SendText(string) error { return nil }
