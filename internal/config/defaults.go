package config

import "runtime"

const (
	DefaultEntityDir      = "mobs"
	DefaultOutputDir      = "./public"
	DefaultHistoryDB      = "./mobsite-history.db"
	DefaultNotifySubject  = "mobsite.builds"
	DefaultDaemonInterval = "15m"
	DefaultDaemonAddr     = ":9090"
	DefaultGitBranch      = "main"
)

// Normalize case-folds enumerations. Unknown values are errors rather than
// silently replaced.
func Normalize(cfg *Config) error {
	var err error
	if cfg.Logging.Level, err = logLevelNormalizer.Parse(string(cfg.Logging.Level)); err != nil {
		return validationError("logging.level", err)
	}
	if cfg.Logging.Format, err = logFormatNormalizer.Parse(string(cfg.Logging.Format)); err != nil {
		return validationError("logging.format", err)
	}
	if cfg.Build.Retry.Mode, err = retryBackoffNormalizer.Parse(string(cfg.Build.Retry.Mode)); err != nil {
		return validationError("build.retry.mode", err)
	}
	if cfg.Data.Git != nil && cfg.Data.Git.Auth != nil {
		if cfg.Data.Git.Auth.Type, err = authTypeNormalizer.Parse(string(cfg.Data.Git.Auth.Type)); err != nil {
			return validationError("data.git.auth.type", err)
		}
	}
	return nil
}

// ApplyDefaults fills every unset field with its default.
func ApplyDefaults(cfg *Config) {
	if cfg.Site.EntityDir == "" {
		cfg.Site.EntityDir = DefaultEntityDir
	}
	if cfg.Output.Directory == "" {
		cfg.Output.Directory = DefaultOutputDir
	}
	if cfg.Build.Concurrency <= 0 {
		cfg.Build.Concurrency = runtime.GOMAXPROCS(0)
	}
	if cfg.Build.Retry.InitialDelay == "" {
		cfg.Build.Retry.InitialDelay = "1s"
	}
	if cfg.Build.Retry.MaxDelay == "" {
		cfg.Build.Retry.MaxDelay = "30s"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
	if cfg.History.DBPath == "" {
		cfg.History.DBPath = DefaultHistoryDB
	}
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = DefaultNotifySubject
	}
	if cfg.Daemon.Interval == "" {
		cfg.Daemon.Interval = DefaultDaemonInterval
	}
	if cfg.Daemon.HTTPAddr == "" {
		cfg.Daemon.HTTPAddr = DefaultDaemonAddr
	}
	if cfg.Data.Git != nil && cfg.Data.Git.Branch == "" {
		cfg.Data.Git.Branch = DefaultGitBranch
	}
}
