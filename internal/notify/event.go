package notify

import (
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/buildwatch/internal/monitor"
)

// Event is the payload delivered to sinks for one cycle with changes.
type Event struct {
	ID      string                 `json:"id"`
	Server  string                 `json:"server"`
	Time    time.Time              `json:"time"`
	Changes []monitor.ChangeRecord `json:"changes"`
	Text    string                 `json:"text"`
}

// NewEvent wraps changes of server in an Event with a fresh ID.
func NewEvent(server string, changes []monitor.ChangeRecord) Event {
	return Event{
		ID:      uuid.NewString(),
		Server:  server,
		Time:    time.Now().UTC(),
		Changes: changes,
		Text:    FormatChanges(server, changes),
	}
}
