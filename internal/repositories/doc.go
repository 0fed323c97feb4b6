// Package repositories provides persistence for library snapshots and
// transfer runs.
//
// [SnapshotRepository] and [RunRepository] store their entities in SQLite,
// with snapshot tracks kept in a position-indexed child table so a snapshot
// round-trips with its exact extraction order. [FileSnapshotStore] offers the
// same snapshot artifact as a portable JSON file for export and offline
// transfer.
package repositories
