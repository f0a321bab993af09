package audit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oatfabric/shmdf/pkg/audit"
)

type captureLogger struct {
	events []audit.Event
}

func (c *captureLogger) LogEvent(e audit.Event) {
	c.events = append(c.events, e)
}

func TestCustomLoggerReceivesEventFields(t *testing.T) {
	var c captureLogger
	before := time.Now()
	c.LogEvent(audit.Event{
		Kind:    audit.EventBind,
		Address: "camera-0",
		At:      before,
		Details: map[string]interface{}{"payload_bytes": 1024},
	})

	require.Len(t, c.events, 1)
	require.Equal(t, audit.EventBind, c.events[0].Kind)
	require.Equal(t, "camera-0", c.events[0].Address)
	require.Equal(t, 1024, c.events[0].Details["payload_bytes"])
}

// Record is a thin convenience over StdLogger; this only exercises that
// it does not panic across every event kind the fabric emits.
func TestRecordDoesNotPanicForEveryEventKind(t *testing.T) {
	kinds := []audit.EventKind{
		audit.EventBind, audit.EventTouch, audit.EventDetach,
		audit.EventEndOfStream, audit.EventPoisoned,
	}
	for _, k := range kinds {
		audit.Record(k, "addr", map[string]interface{}{"k": string(k)})
	}
}
