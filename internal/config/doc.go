// Package config defines the idbridge client configuration: the struct
// layout, defaults, validation and a sanitized copy for logging.
package config
