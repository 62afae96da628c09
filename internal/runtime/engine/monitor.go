package engine

import (
	"time"

	"github.com/drblury/ddsctx/dds"
)

func (e *Engine) monitor(interval time.Duration) {
	defer e.wg.Done()

	ticker := e.opts.Clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.events.post(e.checkTimers(e.opts.Clock.Now())...)
		}
	}
}

// checkTimers evaluates deadlines and liveliness leases at now.
func (e *Engine) checkTimers(now time.Time) []func() {
	var events []func()
	e.entities.ForEach(func(_ dds.Entity, ent entity) bool {
		switch v := ent.(type) {
		case *reader:
			events = append(events, v.tick(now)...)
		case *writer:
			events = append(events, v.tick(now)...)
		}
		return true
	})
	return events
}
