package payment

import (
	"fmt"

	"github.com/quietpage/reflectd/config"
	"github.com/quietpage/reflectd/ports"
)

// NewProvider creates a billing provider based on config.
func NewProvider(cfg config.BillingConfig) (ports.BillingProvider, error) {
	switch cfg.Mode {
	case "stripe":
		if cfg.SecretKey == "" {
			return nil, fmt.Errorf("stripe secret key is required")
		}
		return NewStripeProvider(StripeConfig{
			SecretKey:     cfg.SecretKey,
			WebhookSecret: cfg.WebhookSecret,
		}), nil

	case "none", "":
		return NewNoopProvider(), nil

	default:
		return nil, fmt.Errorf("unknown billing mode: %s", cfg.Mode)
	}
}
