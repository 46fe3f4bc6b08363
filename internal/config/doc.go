// Package config loads runtime configuration from multiple sources (YAML files,
// environment variables, a .env file, CLI flags) with precedence: CLI flags >
// YAML config > Environment variables > Defaults. It covers both the run
// flags of the interpreter and the settings of the playground server.
package config
