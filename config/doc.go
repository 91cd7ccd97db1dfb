// Package config loads modelkit configuration from a YAML/JSON/TOML file,
// an optional .env file and the environment.
//
// # Usage
//
//	var cfg AppConfig
//	err := config.LoadConfig("modelkit", &cfg, config.WithConfigFile(path))
//
// Environment variables carrying the MODELKIT_ prefix override file values,
// with underscores mapped onto nested keys (MODELKIT_HUB_CACHE_DIR sets
// hub.cache_dir).
package config
