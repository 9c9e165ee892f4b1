// Package config defines the workspace configuration file that sits at the
// root of a gridbuild workspace, along with its defaults and validation.
//
// The file may be written in TOML (WORKSPACE.toml) or YAML (WORKSPACE.yaml,
// WORKSPACE.yml). Both formats decode into the same Config struct; fields that
// are absent keep their default values.
package config
