package notify

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Notifier delivers a free-text message to a citizen address. Addresses
// carry their channel as a scheme prefix ("telegram:12345"); bare
// addresses such as phone numbers have no scheme.
type Notifier interface {
	Send(ctx context.Context, address, text string) error
}

// LogNotifier records the message instead of delivering it. It backs
// channels that have no outbound path wired, so status updates are
// never silently dropped.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n *LogNotifier) Send(_ context.Context, address, text string) error {
	n.Logger.Info().Str("address", address).Str("text", text).Msg("notification logged")
	return nil
}

// Dispatcher routes by address scheme to a registered Notifier and
// falls back to logging for everything else.
type Dispatcher struct {
	byScheme map[string]Notifier
	fallback Notifier
}

func NewDispatcher(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		byScheme: make(map[string]Notifier),
		fallback: &LogNotifier{Logger: logger},
	}
}

func (d *Dispatcher) Register(scheme string, n Notifier) {
	d.byScheme[scheme] = n
}

func (d *Dispatcher) Send(ctx context.Context, address, text string) error {
	if scheme, _, ok := strings.Cut(address, ":"); ok {
		if n, found := d.byScheme[scheme]; found {
			return n.Send(ctx, address, text)
		}
	}
	return d.fallback.Send(ctx, address, text)
}
