package extension

import (
	"github.com/xraph/lettrage/journal"
	"github.com/xraph/lettrage/matching"
)

// Config holds the lettrage extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.lettrage" or "lettrage" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Strategy names the matching strategy used by Suggest (default: "greedy").
	Strategy string `json:"strategy" mapstructure:"strategy" yaml:"strategy"`

	// DisablePersist keeps suggestions in memory only; Approve and Reject
	// then have nothing to act on.
	DisablePersist bool `json:"disable_persist" mapstructure:"disable_persist" yaml:"disable_persist"`

	// ReconcilablePrefixes lists the account code prefixes extracted from
	// journal entries (default: "40", "41").
	ReconcilablePrefixes []string `json:"reconcilable_prefixes" mapstructure:"reconcilable_prefixes" yaml:"reconcilable_prefixes"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Strategy:             matching.GreedyName,
		ReconcilablePrefixes: append([]string(nil), journal.DefaultPrefixes...),
	}
}
