package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRefresh()
	c.normalizeView()
	c.normalizeTransfer()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	var err error
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

// Zero values mean "unset" and fall back to defaults; negative values are
// left alone so Validate can report them.
func (c *Config) normalizeRefresh() {
	if c.Refresh.TickMillis == 0 {
		c.Refresh.TickMillis = defaultTickMillis
	}
	if c.Refresh.NormalCycleSeconds == 0 {
		c.Refresh.NormalCycleSeconds = defaultNormalCycleSeconds
	}
	if c.Refresh.ErrorCycleSeconds == 0 {
		c.Refresh.ErrorCycleSeconds = defaultErrorCycleSeconds
	}
	if c.Refresh.ContentPollMillis == 0 {
		c.Refresh.ContentPollMillis = defaultContentPollMillis
	}
	if c.Refresh.ContentCycleSeconds == 0 {
		c.Refresh.ContentCycleSeconds = defaultContentCycleSeconds
	}
}

func (c *Config) normalizeView() {
	if c.View.MaxWindow == 0 {
		c.View.MaxWindow = defaultMaxWindow
	}
	if c.View.MoreIncrement == 0 {
		c.View.MoreIncrement = defaultMoreIncrement
	}
	if c.View.SettleMillis == 0 {
		c.View.SettleMillis = defaultSettleMillis
	}
	if c.View.BottomTolerance == 0 {
		c.View.BottomTolerance = defaultBottomTolerance
	}
}

func (c *Config) normalizeTransfer() {
	if c.Transfer.Port == 0 {
		c.Transfer.Port = defaultFTPPort
	}
	if c.Transfer.DialTimeoutSeconds == 0 {
		c.Transfer.DialTimeoutSeconds = defaultDialTimeoutSeconds
	}
	if c.Transfer.ReuseHours == 0 {
		c.Transfer.ReuseHours = defaultReuseHours
	}
	if c.Transfer.AppendMinBytes == 0 {
		c.Transfer.AppendMinBytes = defaultAppendMinBytes
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
