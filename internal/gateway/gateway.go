// Package gateway delivers engine replies to external messaging channels.
package gateway

import (
	"context"
	"fmt"

	"crm-agent/internal/common/config"
	"crm-agent/internal/common/logger"
)

// Sender delivers one outbound message to a recipient address. The address
// format is provider-specific (an E.164 phone number for SMS providers).
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// New builds the Sender selected by gateway.provider.
func New(ctx context.Context, cfg config.GatewayConfig, log logger.Logger) (Sender, error) {
	switch cfg.Provider {
	case "twilio":
		return NewTwilioSender(cfg, log), nil
	case "sns":
		return NewSNSSender(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown gateway provider: %q", cfg.Provider)
	}
}
