package domain

import "errors"

var (
	ErrFetch              = errors.New("fetch failed")
	ErrSubscription       = errors.New("subscription failed")
	ErrAudit              = errors.New("audit log failed")
	ErrConfigMissing      = errors.New("data source configuration missing")
	ErrInvalidAlpha       = errors.New("alpha must be within [0, 1]")
	ErrUnknownMode        = errors.New("unknown smoothing mode")
	ErrCoordinatorStopped = errors.New("coordinator stopped")
	ErrInvalidPoint       = errors.New("invalid score point")
)
