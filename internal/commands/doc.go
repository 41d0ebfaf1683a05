// Package commands provides the command-line interface of pgseal.
//
// It implements commands for:
//   - public-key encryption
//   - passphrase encryption
//   - plain storage
//
// The package handles command-line parsing, configuration validation,
// and environment variable binding through cobra and viper.
package commands
