// Package store provides the SQLite run ledger of hlaservices.
//
// Each services check is recorded as:
//   - Run: federation, SUT, catalogue and final outcome
//   - Observations: every service that became observed, with its source
//   - Events: every federation callback the monitor handled and its outcome
//
// # Ordering
//
// Observations and events are ordered by seq, the monitor's logical clock,
// never by wall time. Every query includes ORDER BY seq ASC with a binary
// tie-breaker so traces read back identically.
//
// # Writes
//
// Observation and event rows use ON CONFLICT DO NOTHING: writing the same
// record twice is a no-op. A service is observed at most once per run.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
