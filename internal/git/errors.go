package git

import (
	"strings"

	ferrors "git.home.luguber.info/inful/mobsite/internal/foundation/errors"
)

// ClassifyGitError translates go-git errors into ClassifiedErrors.
func ClassifyGitError(err error, op string, url string) error {
	if err == nil {
		return nil
	}
	if _, ok := ferrors.AsClassified(err); ok {
		return err
	}

	l := strings.ToLower(err.Error())
	category := ferrors.CategoryGit
	retryable := true
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "auth fail") || strings.Contains(l, "not authorized") || strings.Contains(l, "invalid credentials"):
		category, retryable = ferrors.CategoryConfig, false
	case strings.Contains(l, "repository not found") || strings.Contains(l, "not found") || strings.Contains(l, "does not exist"):
		category, retryable = ferrors.CategoryNotFound, false
	case strings.Contains(l, "unsupported protocol") || strings.Contains(l, "protocol not supported"):
		category, retryable = ferrors.CategoryConfig, false
	case strings.Contains(l, "remote hung up") || strings.Contains(l, "connection reset") || strings.Contains(l, "timeout") || strings.Contains(l, "no route to host") || strings.Contains(l, "connection refused"):
		category = ferrors.CategoryNetwork
	}

	b := ferrors.WrapError(err, category, "git "+op+" failed").
		WithContext("op", op).
		WithContext("url", url)
	if retryable {
		b.Retryable()
	} else {
		b.UserAction()
	}
	return b.Build()
}

// IsRetryable reports whether a classified git error is worth retrying.
func IsRetryable(err error) bool {
	if c, ok := ferrors.AsClassified(err); ok {
		return c.CanRetry()
	}
	return true
}
