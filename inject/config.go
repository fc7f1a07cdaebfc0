package inject

import "go.uber.org/zap"

// DefaultVTableSlots is the number of System.ValueType vtable entries
// copied into value-type skeletons: Finalize, Equals, GetHashCode, ToString.
const DefaultVTableSlots = 4

// Config holds configuration for a Registry
type Config struct {
	// Logger receives batch diagnostics. nil uses the package logger.
	Logger *zap.Logger

	// VTableSlots overrides DefaultVTableSlots.
	VTableSlots int

	// Strict reports re-injection of a type this registry already injected
	// as AlreadyInjected instead of skipping it.
	Strict bool
}

func (c *Config) logger() *zap.Logger {
	if c == nil || c.Logger == nil {
		return Logger()
	}
	return c.Logger
}

func (c *Config) vtableSlots() int {
	if c == nil || c.VTableSlots <= 0 {
		return DefaultVTableSlots
	}
	return c.VTableSlots
}

func (c *Config) strict() bool {
	return c != nil && c.Strict
}
