// Package eventstore keeps the history of detected build status changes.
//
// Every delivered change set is appended as one row per changed job. SQLite
// (modernc.org/sqlite, no cgo) is the default backend; Postgres is available
// through lib/pq for installations sharing one history between hosts.
package eventstore
