// Package store persists API descriptors and template variables in a single
// JSON document on disk.
//
// Every mutation takes the writer lock, applies the change to a private copy,
// writes the copy to <path>.tmp, fsyncs and renames it over <path>, and only
// then publishes it to readers. A failed write leaves both memory and disk
// unchanged. Readers work on immutable snapshots and never wait for disk I/O.
//
// A missing file loads as an empty store. A file that cannot be parsed, or
// that holds duplicate ids or names, fails with ErrCorrupt and is never
// overwritten.
package store
