// Package config loads, parses and validates taskd configuration from an
// optional .env file, an optional config.yaml and TASKD_* environment
// variables. Storage, cache and queue backends are selectable so the service
// can run entirely in-process.
package config
