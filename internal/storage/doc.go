// Package storage persists the callback audit trail.
//
// Drivers:
//   - "sqlite": pure-Go SQLite (modernc.org/sqlite), schema embedded
//   - "none" or empty: disabled, Open returns (nil, nil)
//
// Entries never contain callback data or keys, only outcomes and ids.
package storage
