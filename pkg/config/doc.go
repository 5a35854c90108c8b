// Package config provides configuration management for Bulwark.
//
// This package handles loading and validating the service configuration
// from YAML files with environment variable overrides. The service
// configuration covers the admin server, where resilience policies come
// from, how the registry installs them, install history and telemetry.
// The resilience policies themselves are typed by package policy and are
// either embedded under the resilience key or read from a separate file.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("bulwark.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("bulwark.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention BULWARK_SECTION_FIELD.
// For example:
//
//   - BULWARK_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - BULWARK_SOURCE_FILE_PATH overrides source.file_path
//   - BULWARK_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// There is no package-level configuration; callers pass *Config explicitly.
package config
