package runner

import (
	"fmt"
	"time"
)

// Profile holds the timings of one Run. Device durations are the execution
// times reported by the queue's events.
type Profile struct {
	WindowSize int
	WorkItems  int

	Upload    time.Duration
	Prefilter time.Duration
	Kernel    time.Duration
	Download  time.Duration
	Total     time.Duration
}

// String formats the profile on one line.
func (p Profile) String() string {
	return fmt.Sprintf("window=%d work-items=%d upload=%s prefilter=%s kernel=%s download=%s total=%s",
		p.WindowSize, p.WorkItems, p.Upload, p.Prefilter, p.Kernel, p.Download, p.Total)
}
