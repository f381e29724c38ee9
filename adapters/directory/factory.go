package directory

import (
	"fmt"

	"github.com/quietpage/reflectd/config"
	"github.com/quietpage/reflectd/ports"
)

// NewDirectory creates a user directory client based on config.
func NewDirectory(cfg config.DirectoryConfig) (ports.Directory, error) {
	switch cfg.Mode {
	case "http":
		if cfg.BaseURL == "" || cfg.ServiceKey == "" {
			return nil, fmt.Errorf("directory base URL and service key are required")
		}
		return NewHTTPDirectory(HTTPConfig{
			BaseURL:    cfg.BaseURL,
			ServiceKey: cfg.ServiceKey,
			Timeout:    cfg.Timeout,
		}), nil

	case "none", "":
		return NewNoopDirectory(), nil

	default:
		return nil, fmt.Errorf("unknown directory mode: %s", cfg.Mode)
	}
}
