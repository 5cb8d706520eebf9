package config

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// ServerSnapshot computes a stable hash of the fields that affect how a server
// is polled. The daemon restarts a monitor on reload only when this changes.
func (c *Config) ServerSnapshot(s ServerConfig) string {
	h := sha256.New()
	w := func(parts ...string) { h.Write([]byte(strings.Join(parts, "="))); h.Write([]byte{0}) }
	w("url", s.URL)
	w("username", s.Username)
	w("api_token", s.APIToken)
	w("verify_certificate", strconv.FormatBool(s.VerifiesCertificate()))
	w("timeout", s.Timeout.String())
	w("filter_prefix", s.FilterPrefix)
	w("max_projects", strconv.Itoa(s.ProjectLimit()))
	w("retry", string(s.Retry.Mode), s.Retry.Initial.String(), s.Retry.Max.String(), strconv.Itoa(s.Retry.MaxRetries))
	w("interval", c.Monitor.Interval.String())
	w("load_state", strconv.FormatBool(c.Monitor.LoadsState()))
	return hex.EncodeToString(h.Sum(nil))
}
