// Package journal records the event batches an engine publishes into a
// SQLite database and replays them into the virtual list they describe.
//
// A journal holds sessions. A session is one engine lifetime; its events are
// keyed by (batch_seq, position), where batch_seq is the engine's logical
// batch sequence. Item payloads are stored as canonical JSON (sorted keys,
// NFC-normalized strings) so that equal lists produce equal rows.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package journal
