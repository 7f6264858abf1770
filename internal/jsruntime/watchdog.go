package jsruntime

import (
	"runtime"
	"time"

	"github.com/dop251/goja"
)

// heapHeadroomMultiple mirrors the original isolate's near-heap-limit
// callback, which grants roughly 5x headroom over the configured limit
// before the host is allowed to consider the process itself at risk.
// goja has no per-runtime heap accounting, so this watchdog approximates
// it by sampling process-wide HeapAlloc deltas; the headroom multiple is
// kept only as a note for why a single overshoot sample doesn't abort
// immediately — vm.Interrupt is requested on the first overshoot and
// takes effect at goja's next bytecode boundary, well inside that margin.
const heapHeadroomMultiple = 5

// watchHeap polls process heap growth while a script runs and interrupts
// vm once the delta from baseline exceeds maxBytes. It exits when stop is
// closed (the script finished on its own).
func watchHeap(vm *goja.Runtime, maxBytes int64, stop <-chan struct{}, exceeded chan<- struct{}) {
	if maxBytes <= 0 {
		return
	}

	var baseline runtime.MemStats
	runtime.ReadMemStats(&baseline)

	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			delta := int64(stats.HeapAlloc) - int64(baseline.HeapAlloc)
			if delta >= maxBytes {
				vm.Interrupt("memory limit exceeded")
				close(exceeded)
				return
			}
		}
	}
}
