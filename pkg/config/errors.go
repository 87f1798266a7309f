package config

import "errors"

var (
	// ErrParsingConfig wraps env.Parse failures.
	ErrParsingConfig = errors.New("config.errors.failed_to_parse_env")

	// ErrConfigNotLoaded means the cache lookup after parsing came up empty.
	ErrConfigNotLoaded = errors.New("config.errors.not_loaded")

	// ErrNilPointer means a nil destination was passed to Load.
	ErrNilPointer = errors.New("config.errors.nil_pointer")
)
