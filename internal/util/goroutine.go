package util

import (
	"fmt"

	"github.com/real-rm/counselbox/internal/metrics"
	"github.com/real-rm/golog"
)

// SafeGo launches a goroutine with panic recovery.
// A panicking read pump or watch timer must never take down the whole client,
// so the panic is recovered, logged, and counted instead.
func SafeGo(logger *golog.Logger, component string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic recovered in goroutine",
					"component", component,
					"panic", fmt.Sprintf("%v", r))
				metrics.PanicsRecovered.Inc()
			}
		}()
		fn()
	}()
}
