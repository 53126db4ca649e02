// Package tekkencord embeds the annotated default configuration.
//
// cmd/tekkencord writes [DefaultConfigTOML] to the data directory on first
// run so users have a documented file to edit.
package tekkencord

import _ "embed"

// DefaultConfigTOML holds the raw bytes of config.default.toml, generated by
// cmd/genconfig and embedded at build time.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte
