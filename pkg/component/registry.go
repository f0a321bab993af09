package component

import (
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// handle is anything Connect hands back that needs a guarded, single
// Close.
type handle interface {
	Close() error
}

// registry is the process-local record of handles Connect has handed
// out (spec §9 open question (a)): the fabric itself keeps no
// process-wide singleton of open nodes, but a single process may build
// more than one Component sharing an address space, and closing the
// same handle twice must be harmless. It is keyed by address and holds
// the handle most recently tracked there; it does not merge two
// different handles on one address into a single close.
var registry = cmap.New[handle]()

// trackClose registers h under address and returns a Close function
// that runs h.Close() at most once, even if that function is called
// repeatedly or from several goroutines. Later calls return nil.
func trackClose(address string, h handle) func() error {
	registry.Set(address, h)
	var once sync.Once
	return func() error {
		var err error
		once.Do(func() {
			registry.Remove(address)
			err = h.Close()
		})
		return err
	}
}
