// Package storage persists the dispatch state of a monitor: the cursor and, for monitors
// that need it, the set of already-notified document identities.
//
// Two drivers exist:
//   - file:   one plain-text checkpoint file and one JSON array file per monitor
//             (the formats operators already know how to inspect and edit)
//   - sqlite: both values in a single SQLite database shared by all monitors
package storage
