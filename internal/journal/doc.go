// Package journal keeps a local SQLite log of delivery attempt metadata.
//
// Entries record which channel ran for an attempt, how it ended and the size
// and label of the artifact. Record field values and video bytes are never
// stored. The schema is versioned; after a schema change users delete
// journal.db to adopt the new layout.
package journal
