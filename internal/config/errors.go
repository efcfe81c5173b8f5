package config

import "errors"

var (
	// ErrInvalidConcurrency is returned when concurrency is not greater than 0.
	ErrInvalidConcurrency = errors.New("concurrency must be greater than 0")
	// ErrInvalidTimeout is returned when the request timeout is not greater than 0.
	ErrInvalidTimeout = errors.New("timeout must be greater than 0")
	// ErrInvalidMaxWorkers is returned when the storage writer pool size is not greater than 0.
	ErrInvalidMaxWorkers = errors.New("max-workers must be greater than 0")
	// ErrInvalidMaxDepth is returned when max depth is negative.
	ErrInvalidMaxDepth = errors.New("max-depth must not be negative")
	// ErrMissingCustomUA is returned when --user-agent custom is selected without --custom-ua.
	ErrMissingCustomUA = errors.New("--custom-ua is required when --user-agent is custom")
	// ErrNoSeeds is returned when no seed URLs are given and no existing database can be resumed.
	ErrNoSeeds = errors.New("no seed URLs provided and no existing database found to resume")
)
