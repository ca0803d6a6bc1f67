// package models defines the snapshot documents exchanged between export and
// import, one JSON file per data category.
//
// A snapshot is immutable once captured: the export phase writes it with
// [WriteAtomic] and every later phase only reads it back with [ReadSnapshot].
// Field names and file names are part of the on-disk contract and never change
// between releases without a migration note.
package models
