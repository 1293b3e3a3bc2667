// Package config loads and validates wagate configuration from YAML files
// with ${ENV_VAR} expansion and duration-string parsing.
package config
