// Package config provides the configuration of the politecrawl engine and CLI.
// It defines the defaults, validation rules, the .politecrawl YAML file and
// per-host site overrides, and a file watcher for reloading rules during
// long crawls.
package config
