package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyServer     = "server"
	KeyJobKey     = "job_key"
	KeyCycleID    = "cycle_id"
	KeyDurationMS = "duration_ms"
	KeyChanges    = "changes"
	KeyObserved   = "observed"
	KeyPath       = "path"
	KeyURL        = "url"
	KeySink       = "sink"
	KeyStatusCode = "status_code"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Server(name string) slog.Attr  { return slog.String(KeyServer, name) }
func JobKey(key string) slog.Attr   { return slog.String(KeyJobKey, key) }
func CycleID(id string) slog.Attr   { return slog.String(KeyCycleID, id) }
func Changes(n int) slog.Attr       { return slog.Int(KeyChanges, n) }
func Observed(n int) slog.Attr      { return slog.Int(KeyObserved, n) }
func Path(p string) slog.Attr       { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr        { return slog.String(KeyURL, u) }
func Sink(name string) slog.Attr    { return slog.String(KeySink, name) }
func StatusCode(code int) slog.Attr { return slog.Int(KeyStatusCode, code) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
