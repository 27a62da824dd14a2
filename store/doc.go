// Package store persists postings and the feature records built from
// résumés and postings.
//
// Three backends implement Store:
//
//   - Memory: maps behind a RWMutex, for tests and single-process use
//   - SQLite: modernc.org/sqlite, embeddings kept as JSON arrays
//   - Postgres: pgx with pgvector columns
//
// Every upsert replaces the whole feature record in one statement, so a
// reader sees either the old record or the new one, never a mix. Deleting a
// posting deletes its feature record.
//
// Absent records are reported as NOT_FOUND errors; use IsNotFound.
package store
