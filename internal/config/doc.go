// Package config loads the e133-device configuration.
//
// Configuration is read from a YAML file, then overridden by E133_*
// environment variables, then validated. Every field has a default, so an
// empty path yields a runnable configuration.
package config
