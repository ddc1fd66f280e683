package config

import (
	"fmt"
	"path"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/mobsite/internal/foundation/errors"
)

// Validate checks a normalized, defaulted configuration.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Site.Name) == "" {
		return ferrors.ConfigError("site.name is required").Build()
	}
	if err := validateDir("site.entity_dir", cfg.Site.EntityDir); err != nil {
		return err
	}
	if cfg.Site.BasePath != "" {
		if err := validateDir("site.base_path", strings.Trim(cfg.Site.BasePath, "/")); err != nil {
			return err
		}
	}
	for _, f := range cfg.Site.Fonts {
		if f == "" || strings.ContainsAny(f, `/\`) {
			return ferrors.ValidationError(fmt.Sprintf("site.fonts: invalid font file name %q", f)).Build()
		}
	}

	hasDir := cfg.Data.Dir != ""
	hasGit := cfg.Data.Git != nil
	switch {
	case hasDir && hasGit:
		return ferrors.ConfigError("data: set either dir or git, not both").Build()
	case !hasDir && !hasGit:
		return ferrors.ConfigError("data: one of dir or git is required").Build()
	case hasGit && cfg.Data.Git.URL == "":
		return ferrors.ConfigError("data.git.url is required").Build()
	}
	if hasGit {
		if err := validateAuth(cfg.Data.Git.Auth); err != nil {
			return err
		}
	}

	for field, raw := range map[string]string{
		"build.retry.initial_delay": cfg.Build.Retry.InitialDelay,
		"build.retry.max_delay":     cfg.Build.Retry.MaxDelay,
		"daemon.interval":           cfg.Daemon.Interval,
	} {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return validationError(field, err)
		}
		if d <= 0 {
			return ferrors.ValidationError(field + " must be positive").Build()
		}
	}
	if cfg.Build.Retry.MaxRetries < 0 {
		return ferrors.ValidationError("build.retry.max_retries cannot be negative").Build()
	}
	if cfg.Notify.Enabled && cfg.Notify.NATSURL == "" {
		return ferrors.ConfigError("notify.nats_url is required when notify is enabled").Build()
	}
	return nil
}

func validateDir(field, dir string) error {
	if dir == "" {
		return ferrors.ValidationError(field + " cannot be empty").Build()
	}
	if path.IsAbs(dir) || strings.Contains(dir, `\`) {
		return ferrors.ValidationError(fmt.Sprintf("%s must be a relative slash-separated path: %q", field, dir)).Build()
	}
	for seg := range strings.SplitSeq(dir, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return ferrors.ValidationError(fmt.Sprintf("%s has an invalid segment: %q", field, dir)).Build()
		}
	}
	return nil
}

func validateAuth(a *AuthConfig) error {
	if a.IsZero() {
		return nil
	}
	switch a.Type {
	case AuthTypeSSH:
		if a.KeyPath == "" {
			return ferrors.ConfigError("data.git.auth.key_path is required for ssh auth").Build()
		}
	case AuthTypeToken:
		if a.Token == "" {
			return ferrors.ConfigError("data.git.auth.token is required for token auth").Build()
		}
	case AuthTypeBasic:
		if a.Username == "" || a.Password == "" {
			return ferrors.ConfigError("data.git.auth.username and password are required for basic auth").Build()
		}
	}
	return nil
}

func validationError(field string, err error) error {
	return ferrors.WrapError(err, ferrors.CategoryValidation, field).Fatal().UserAction().Build()
}
