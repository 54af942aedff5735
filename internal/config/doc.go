// Package config defines ghd settings and helpers to load, validate and
// default them.
//
// Settings are read once at process start from a YAML or TOML file (chosen by
// extension), validated against an embedded JSON Schema, completed with
// defaults derived from an explicitly passed home directory, and handed to
// constructors as a plain struct.
package config
