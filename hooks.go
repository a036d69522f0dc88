package fallcache

// Hooks are lightweight callbacks for high-signal events. Implementations
// MUST be cheap and non-blocking; the manager calls them on hot paths.
type Hooks interface {
	// The preferred backend failed and the manager switched to the
	// fallback for the rest of the process lifetime.
	Degraded(err error)

	// A cache write was skipped because the backend's write lock could not
	// be acquired within its bounded wait (fail-open policy).
	WriteSkipped(key, reason string)

	// One key of a SetMultiple batch failed.
	BatchKeyError(key string, err error)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) Degraded(error)              {}
func (NopHooks) WriteSkipped(string, string) {}
func (NopHooks) BatchKeyError(string, error) {}
