// Package config loads typed configuration from environment variables.
//
// Structs declare their variables with github.com/caarlos0/env tags and the
// package fills them, optionally reading a .env file first through
// github.com/joho/godotenv. Every featurekit component ships a Config struct
// with env tags and sensible defaults:
//
//	var cfg cache.Config
//	config.MustLoad(&cfg)
//	results := cache.New[feature.EvaluationResult](cache.FromConfig(cfg)...)
//
// Load caches one value per type for the life of the process; Parse reads
// the environment every time and is handy in tests or when several
// instances need different settings.
//
// # Errors
//
// Parsing failures wrap ErrParsingConfig and can be checked with errors.Is.
package config
