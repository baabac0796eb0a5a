package runner

import "fmt"

// DefaultMaxWindowSize is the default window capacity in code points.
const DefaultMaxWindowSize = 16 << 20

// MaxWindowLimit bounds MaxWindowSize so that window byte offsets fit in
// 32-bit kernel arguments.
const MaxWindowLimit = 1 << 30

// MaxPrefilterSymbols is the largest number of distinct first symbols for
// which the candidate prefilter is built.
const MaxPrefilterSymbols = 64

// Config configures a Runner.
type Config struct {
	// MaxWindowSize is the largest window, in code points, that Run accepts.
	// Device buffers are sized for it once at construction.
	MaxWindowSize int

	// Profiling records a Profile for every Run.
	Profiling bool

	// Prefilter narrows the start offsets dispatched to the kernel to those
	// whose code point can begin a match, when the automaton allows it.
	Prefilter bool
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() Config {
	return Config{
		MaxWindowSize: DefaultMaxWindowSize,
		Prefilter:     true,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.MaxWindowSize < 1 || c.MaxWindowSize > MaxWindowLimit {
		return &ConfigError{
			Field:   "MaxWindowSize",
			Message: fmt.Sprintf("must be between 1 and %d, got %d", MaxWindowLimit, c.MaxWindowSize),
		}
	}
	return nil
}

// ConfigError represents an invalid configuration parameter or a request
// outside the configured limits.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "runner: invalid config: " + e.Field + ": " + e.Message
}
