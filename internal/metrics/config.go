package metrics

import "codeberg.org/mutker/followerctl/internal/errors"

type Config struct {
	Enabled bool
	// TextfilePath is where the node-exporter textfile is written after each pass.
	TextfilePath string
}

func DefaultConfig() Config {
	return Config{
		Enabled: false, // Disabled by default
	}
}

func (c Config) Validate() error {
	if c.Enabled && c.TextfilePath == "" {
		return errors.New().WithData(errors.ErrInvalidConfig, "metrics.textfile is required when metrics are enabled")
	}
	return nil
}
