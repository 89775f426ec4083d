package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrConfigNotFound    = goerr.New("configuration file not found")
	ErrInvalidConfig     = goerr.New("invalid configuration")
	ErrDuplicateSchoolID = goerr.New("duplicate school ID")
	ErrMissingSchoolID   = goerr.New("school ID is required")
	ErrMissingSchoolName = goerr.New("school name is required")
)

// Context keys for error values
const (
	ConfigPathKey  = "config_path"
	SchoolIDKey    = "school_id"
	SchoolIndexKey = "school_index"
)
