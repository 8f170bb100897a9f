// Package metrics configures and reports the gateway's meters.
package metrics

// Config contains the configuration for the metric collection.
type Config struct {
	Enabled bool   `toml:",omitempty"`
	Prefix  string `toml:",omitempty"` // Only metrics under this prefix are reported
}

// DefaultConfig is the default config for metrics used in metagate.
var DefaultConfig = Config{
	Enabled: false,
	Prefix:  "metagate/",
}
