package service

import (
	"sync"

	hclog "github.com/hashicorp/go-hclog"
)

type disposable struct {
	name    string
	release func()
}

// Disposer releases resources acquired during a mount, last acquired first.
// Resources added after Dispose are released immediately.
type Disposer struct {
	mu       sync.Mutex
	items    []disposable
	disposed bool
	logger   hclog.Logger
}

func NewDisposer(logger hclog.Logger) *Disposer {
	return &Disposer{logger: logger}
}

func (d *Disposer) Add(name string, release func()) {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		d.logger.Trace("release late resource", "resource", name)
		release()
		return
	}
	d.items = append(d.items, disposable{name: name, release: release})
	d.mu.Unlock()
}

// Dispose runs every release function once.
func (d *Disposer) Dispose() {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return
	}
	d.disposed = true
	items := d.items
	d.items = nil
	d.mu.Unlock()

	for i := len(items) - 1; i >= 0; i-- {
		d.logger.Trace("release resource", "resource", items[i].name)
		items[i].release()
	}
}
