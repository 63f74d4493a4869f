package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRefresh(); err != nil {
		return err
	}
	if err := c.validateView(); err != nil {
		return err
	}
	if err := c.validateTransfer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateRefresh() error {
	r := c.Refresh
	if r.TickMillis < 0 {
		return errors.New("refresh.tick_millis must be positive")
	}
	if r.NormalCycleSeconds < 0 {
		return errors.New("refresh.normal_cycle_seconds must be positive")
	}
	if r.ErrorCycleSeconds < 0 {
		return errors.New("refresh.error_cycle_seconds must be positive")
	}
	if r.ErrorCycleSeconds < r.NormalCycleSeconds {
		return fmt.Errorf("refresh.error_cycle_seconds (%d) must not be shorter than refresh.normal_cycle_seconds (%d)",
			r.ErrorCycleSeconds, r.NormalCycleSeconds)
	}
	if r.ContentPollMillis < 0 {
		return errors.New("refresh.content_poll_millis must be positive")
	}
	if r.ContentCycleSeconds < 0 {
		return errors.New("refresh.content_cycle_seconds must be positive")
	}
	return nil
}

func (c *Config) validateView() error {
	if c.View.MaxWindow < 0 {
		return errors.New("view.max_window must be positive")
	}
	if c.View.MoreIncrement < 0 {
		return errors.New("view.more_increment must be positive")
	}
	if c.View.SettleMillis < 0 {
		return errors.New("view.settle_millis must be positive")
	}
	if c.View.BottomTolerance < 0 {
		return errors.New("view.bottom_tolerance must not be negative")
	}
	return nil
}

func (c *Config) validateTransfer() error {
	if c.Transfer.Port < 0 || c.Transfer.Port > 65535 {
		return fmt.Errorf("transfer.port %d out of range", c.Transfer.Port)
	}
	if c.Transfer.DialTimeoutSeconds < 0 {
		return errors.New("transfer.dial_timeout_seconds must be positive")
	}
	if c.Transfer.ReuseHours < 0 {
		return errors.New("transfer.reuse_hours must be positive")
	}
	if c.Transfer.AppendMinBytes < 0 {
		return errors.New("transfer.append_min_bytes must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}
