package cache

import (
	"fmt"

	"github.com/miradorstack/mirador-eeg/internal/config"
)

// FromConfig builds the provider selected by cfg. Disabled caching yields a NoopProvider.
func FromConfig(cfg config.CacheConfig) (Provider, error) {
	if !cfg.Enabled {
		return NoopProvider{}, nil
	}
	switch cfg.Backend {
	case config.BackendMemory, "":
		return NewMemoryProvider(), nil
	case config.BackendValkey:
		return NewValkeyProvider(ValkeyConfig{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			MaxRetries:   cfg.MaxRetries,
			TLS:          cfg.TLS,
		})
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
