// Package config loads, normalizes, and validates portmsg configuration data.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours environment overrides such as PORTMSG_SERVICE and
// PORTMSG_TRANSPORT. The Config type holds every knob the daemon and CLI need:
// the service name and transport, runtime and state directories, logging and
// the metrics listener.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
