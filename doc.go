// Package fallcache implements a single key/value cache contract over
// interchangeable storage backends with transparent fallback.
//
// Components:
//   - backend.Backend: byte store with TTLs and an atomic counter
//     (Redis, ristretto, bigcache, SQLite, filesystem).
//   - Manager: the façade. Applies the key prefix, resolves TTLs, and
//     degrades to the persistent fallback backend when the preferred one
//     fails. Degrade-once, stay-degraded: a backend that recovers
//     mid-process is not re-adopted without an explicit Reset.
//   - Codec[V]: (de)serializes V <-> []byte; Typed[V] binds a Manager to a
//     codec so backends only ever see opaque bytes.
//   - Grouped[V]: named partitions of related keys with coordinated
//     invalidation and an explicit debug bypass switch.
//   - Throttle: fixed-window rate limiting on the manager's atomic counter.
//
// Failure policy: Get and Remember never surface backend errors - the worst
// case is a cache miss and a recompute. Increment is the exception: it backs
// throttling counts, so an increment that cannot be applied atomically is a
// hard error.
//
// Remember has no cross-process single-flight. Two callers racing on a cold
// key may both invoke the generator and both store; last write wins.
package fallcache
