// Package configs provides embedded configuration templates for geosearch.
//
// Templates are embedded at build time so 'geosearch config init' works
// from any distribution. The hierarchy they feed into is documented on
// config.Load.
package configs

import _ "embed"

// ConfigTemplate is written by 'geosearch config init' to the user config
// path or, with --project, to .geosearch.yaml.
//
//go:embed config.example.yaml
var ConfigTemplate string
