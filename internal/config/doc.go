// Package config loads, normalizes, and validates mqas configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and applies MQAS_* environment overrides. The
// Config type centralizes the store connection, queue partition defaults,
// worker loop timing, and HTTP settings so producers and workers started from
// the same file agree on where jobs live.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical backend names, and clear validation errors.
package config
