package engine

import (
	"github.com/miradorstack/mirador-eeg/internal/config"
	"github.com/miradorstack/mirador-eeg/internal/correlation"
	"github.com/miradorstack/mirador-eeg/internal/models"
)

// ConfigOptions translates service configuration into pipeline options. An
// unparseable correlation mode leaves the pipeline default in place; Validate
// reports it at load time.
func ConfigOptions(cfg *config.Config) []Option {
	opts := []Option{WithDataDir(cfg.Data.Dir)}
	if mode, err := correlation.ParseMode(cfg.Analysis.CorrelationMode); err == nil {
		opts = append(opts, WithCorrelationMode(mode))
	}
	if cfg.Data.ExportDir != "" {
		opts = append(opts, WithExportDir(cfg.Data.ExportDir))
	}
	if f := cfg.Analysis.Filter; f.Enabled() {
		opts = append(opts, WithDefaultFilter(models.FilterRequest{LowFreq: f.LowFreq, HighFreq: f.HighFreq, Order: f.Order}))
	}
	return opts
}
