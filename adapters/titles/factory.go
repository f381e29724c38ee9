package titles

import (
	"fmt"

	"github.com/quietpage/reflectd/config"
	"github.com/quietpage/reflectd/ports"
)

// NewGenerator creates a title generator based on config.
func NewGenerator(cfg config.TitlesConfig) (ports.TitleGenerator, error) {
	switch cfg.Mode {
	case "http":
		if cfg.BaseURL == "" || cfg.APIKey == "" {
			return nil, fmt.Errorf("title generator base URL and API key are required")
		}
		return NewHTTPGenerator(HTTPConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), nil

	case "none", "":
		return NewNoopGenerator(), nil

	default:
		return nil, fmt.Errorf("unknown title generator mode: %s", cfg.Mode)
	}
}
