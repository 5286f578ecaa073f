// Package config loads relay configuration from RELAY_* environment variables.
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		return err
//	}
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
//	addr := cfg.Address()
package config
