// Package config handles loading and validation of guildpost-syncd
// configuration from YAML files with environment variable expansion.
package config
