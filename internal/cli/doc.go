// Package cli implements the tplguard command line.
//
// Settings resolve in this order: command line flags, TPLGUARD_* environment
// variables (TPLGUARD_LOG_LEVEL, TPLGUARD_POLICY, ...), the config file named
// by --config, then manifest settings.
package cli
