// Package store provides persistent storage for AI conversation turns using SQLite.
//
// # Data Model
//
//   - Turn: one prompt/response exchange, immutable once written
//   - TurnContext: per-turn metadata (token estimate, context length, fallback/streamed flags)
//   - UserProfile: read-only display fields for rendering the human side of a turn
//
// Turns are append-only. There is no update path; the only delete path is
// ClearTurns, which removes a user's entire history in one statement.
//
// # Ordering
//
// Timestamps are stored as UTC RFC3339Nano strings, so lexicographic
// comparison matches chronological order and range predicates run without
// parsing. Reads are newest-first with rowid as tie-break; callers reverse
// for chronological display.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Use NewSQLiteStore(":memory:") for tests.
package store
