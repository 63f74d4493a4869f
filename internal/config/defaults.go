package config

import "time"

const (
	defaultConfigPath          = "~/.config/logsite/config.toml"
	defaultDataDir             = "~/elkdata"
	defaultLogDir              = "~/.local/share/logsite/logs"
	defaultTickMillis          = 500
	defaultNormalCycleSeconds  = 40
	defaultErrorCycleSeconds   = 120
	defaultContentPollMillis   = 1000
	defaultContentCycleSeconds = 40
	defaultMaxWindow           = 5000
	defaultMoreIncrement       = 999
	defaultSettleMillis        = 500
	defaultBottomTolerance     = 5
	defaultFTPPort             = 21
	defaultDialTimeoutSeconds  = 15
	defaultReuseHours          = 24
	defaultAppendMinBytes      = 1000
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Refresh: Refresh{
			TickMillis:          defaultTickMillis,
			NormalCycleSeconds:  defaultNormalCycleSeconds,
			ErrorCycleSeconds:   defaultErrorCycleSeconds,
			ContentPollMillis:   defaultContentPollMillis,
			ContentCycleSeconds: defaultContentCycleSeconds,
		},
		View: View{
			MaxWindow:       defaultMaxWindow,
			MoreIncrement:   defaultMoreIncrement,
			SettleMillis:    defaultSettleMillis,
			BottomTolerance: defaultBottomTolerance,
		},
		Transfer: Transfer{
			Port:               defaultFTPPort,
			DialTimeoutSeconds: defaultDialTimeoutSeconds,
			InsecureTLS:        true,
			ReuseHours:         defaultReuseHours,
			AppendMinBytes:     defaultAppendMinBytes,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

// Tick is the scheduler polling interval.
func (r Refresh) Tick() time.Duration {
	return time.Duration(r.TickMillis) * time.Millisecond
}

// NormalCycle is the minimum age of a healthy listing before it is refreshed.
func (r Refresh) NormalCycle() time.Duration {
	return time.Duration(r.NormalCycleSeconds) * time.Second
}

// ErrorCycle is the minimum age of a failed listing before it is retried.
func (r Refresh) ErrorCycle() time.Duration {
	return time.Duration(r.ErrorCycleSeconds) * time.Second
}

// ContentPoll is the tick of the open-file content poller.
func (r Refresh) ContentPoll() time.Duration {
	return time.Duration(r.ContentPollMillis) * time.Millisecond
}

// ContentCycle is the minimum age of fetched content before it is fetched again.
func (r Refresh) ContentCycle() time.Duration {
	return time.Duration(r.ContentCycleSeconds) * time.Second
}

// Settle is the delay before a viewer re-anchors to the bottom after new data.
func (v View) Settle() time.Duration {
	return time.Duration(v.SettleMillis) * time.Millisecond
}

// DialTimeout bounds connection establishment to a site.
func (t Transfer) DialTimeout() time.Duration {
	return time.Duration(t.DialTimeoutSeconds) * time.Second
}

// ReuseWindow is how long a downloaded copy stays eligible for reuse or append.
func (t Transfer) ReuseWindow() time.Duration {
	return time.Duration(t.ReuseHours) * time.Hour
}
