package touch

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
)

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

// Stats is a point-in-time snapshot of detector counters
type Stats struct {
	FramesCaptured  int64
	FramesProcessed int64
	FramesDropped   int64 // Overwritten in the frame slot before processing
	Touches         int64 // Touches emitted, all phases
	Errors          int64
	ActiveTouches   int
	Started         time.Time
	Uptime          time.Duration
	LastFrame       time.Time
}

// String formats the snapshot for status lines
func (s Stats) String() string {
	last := "never"
	if !s.LastFrame.IsZero() {
		last = humanize.Time(s.LastFrame)
	}
	uptime := "0s"
	if s.Uptime > 0 {
		uptime = durafmt.Parse(s.Uptime.Truncate(time.Millisecond)).LimitFirstN(2).Format(shortUnits)
	}
	return fmt.Sprintf("frames %s captured, %s processed, %s dropped | touches %s (%d active) | errors %s | up %s | last frame %s",
		humanize.Comma(s.FramesCaptured),
		humanize.Comma(s.FramesProcessed),
		humanize.Comma(s.FramesDropped),
		humanize.Comma(s.Touches),
		s.ActiveTouches,
		humanize.Comma(s.Errors),
		uptime,
		last,
	)
}

// counters are updated from the capture and processing goroutines
type counters struct {
	captured  atomic.Int64
	processed atomic.Int64
	dropped   atomic.Int64
	touches   atomic.Int64
	errors    atomic.Int64
	lastFrame atomic.Int64 // UnixNano
	started   atomic.Int64 // UnixNano
}

// markFrame records t unless a newer frame time is already stored
func (c *counters) markFrame(t time.Time) {
	n := t.UnixNano()
	for {
		cur := c.lastFrame.Load()
		if n <= cur || c.lastFrame.CompareAndSwap(cur, n) {
			return
		}
	}
}

func (c *counters) lastFrameTime() time.Time {
	n := c.lastFrame.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
