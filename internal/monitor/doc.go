// Package monitor implements the poll cycle of one Jenkins server.
//
// A cycle fetches the server overview, walks the job tree depth-first (Walker),
// applies the resulting directives to a copy of the current snapshot (Apply and
// Diff), persists the new snapshot and finally hands the ordered change list to
// the registered listeners.
//
// Keys are built from the job path: the top-level job "A" becomes "/A" and its
// child "b" becomes "/A/b". A configured filter prefix is matched against these
// keys, never against bare job names.
package monitor
