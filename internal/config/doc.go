// Package config loads and validates watcher configuration.
//
// Configuration is YAML with ${VAR} environment substitution. Load order:
// read file, expand env vars, unmarshal, apply defaults, validate.
package config
