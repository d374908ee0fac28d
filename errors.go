package featurekit

import "errors"

var (
	ErrLoadConfig  = errors.New("failed to load featurekit config")
	ErrOpenStorage = errors.New("failed to open flag storage")
	ErrConnect     = errors.New("failed to connect to redis")
	ErrMetrics     = errors.New("failed to set up metrics")
)
