// Package audit records the fabric's lifecycle events — bind, touch,
// detach, end-of-stream, poisoning — as a structured log, independent
// of the debug-level tracing internal/logx already gives every
// package. This is the place to plug a compliance backend in later
// without touching pkg/node.
package audit

import (
	"os"
	"time"

	"github.com/oatfabric/shmdf/internal/logx"
)

var log = logx.New("audit", os.Stderr)

// EventKind names the fabric events audit.Logger records.
type EventKind string

const (
	EventBind        EventKind = "bind"
	EventTouch       EventKind = "touch"
	EventDetach      EventKind = "detach"
	EventEndOfStream EventKind = "end_of_stream"
	EventPoisoned    EventKind = "poisoned"
)

// Event is one recorded occurrence.
type Event struct {
	Kind    EventKind
	Address string
	At      time.Time
	Details map[string]interface{}
}

// Logger records Events. The default implementation writes a
// structured line through internal/logx; a process that needs a
// durable audit trail can implement Logger against a different
// backend (file, syslog, a cloud logging sink) and pass it to
// anywhere pkg/component or pkg/node wiring accepts one.
type Logger interface {
	LogEvent(Event)
}

// StdLogger is the default Logger, writing one line per event through
// internal/logx at Info level.
type StdLogger struct{}

// LogEvent implements Logger.
func (StdLogger) LogEvent(e Event) {
	log.Infof("%s address=%s details=%v", e.Kind, e.Address, e.Details)
}

// Record is a package-level convenience wrapping a StdLogger, used by
// callers that don't need to inject a custom backend.
func Record(kind EventKind, address string, details map[string]interface{}) {
	StdLogger{}.LogEvent(Event{Kind: kind, Address: address, At: time.Now(), Details: details})
}
