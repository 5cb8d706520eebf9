// Package state persists the last observed build state of every monitored job.
//
// Each monitored server owns one JSON document under the data directory, named
// after the server address (see FileNameFor). The document maps job keys to
// BuildState values and is rewritten in full after every poll cycle:
//
//	{"/A": {"name": "/A", "id": 12, "color": "SUCCESS", "culprits": []}}
//
// Writes go to a temporary file that is synced and renamed over the target, so a
// reader never observes a half written document.
package state
