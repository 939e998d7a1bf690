// Package config loads and merges aicr configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags (the overrides map passed to [Load])
//  2. Environment variables (AICR_PROVIDER, AICR_MODEL, AICR_FAIL_ON, ...)
//  3. Config file ($XDG_CONFIG_HOME/aicr/config.yaml)
//  4. Built-in defaults
//
// The file is YAML; a JSON document is accepted as well. Credentials are
// only ever read from the environment and are never written back by [Save].
package config
