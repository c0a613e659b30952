// Package config loads slotwise settings from defaults, an optional
// .slotwise.yaml and SLOTWISE_ environment variables, in increasing order of
// precedence.
//
// Nested keys map to environment variables by replacing dots with
// underscores, e.g. store.path is SLOTWISE_STORE_PATH. SLOTWISE_CONFIG_PATH
// adds a directory to the config file search path.
package config
