package touch

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TrackerConfig controls how observations are associated across frames
type TrackerConfig struct {
	MatchDistance   float64 // Normalized webcam units
	MaxMissedFrames int     // Frames a touch may go unseen before it ends
}

// DefaultTrackerConfig returns recommended settings
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		MatchDistance:   0.08,
		MaxMissedFrames: 2,
	}
}

type track struct {
	last   Touch
	missed int
}

// Tracker assigns stable IDs to observations with greedy nearest-neighbour matching
type Tracker struct {
	config TrackerConfig
	live   []*track
	mu     sync.Mutex
}

// NewTracker creates a tracker. A nil config uses the defaults.
func NewTracker(config *TrackerConfig) *Tracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}
	return &Tracker{config: *config}
}

type candidate struct {
	track, obs int
	dist       float64
}

// Update associates one frame's observations with the live touches and
// returns the resulting touches: matched and new ones in observation
// order, then any that ended this frame
func (tr *Tracker) Update(observations []Observation, frame int64, ts time.Time) []Touch {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	var candidates []candidate
	for i, t := range tr.live {
		for j, o := range observations {
			if d := t.last.Webcam.Distance(o.Webcam); d <= tr.config.MatchDistance {
				candidates = append(candidates, candidate{i, j, d})
			}
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].dist < candidates[b].dist
	})

	trackFor := make([]int, len(observations))
	for j := range trackFor {
		trackFor[j] = -1
	}
	claimed := make([]bool, len(tr.live))
	for _, c := range candidates {
		if claimed[c.track] || trackFor[c.obs] >= 0 {
			continue
		}
		claimed[c.track] = true
		trackFor[c.obs] = c.track
	}

	out := make([]Touch, 0, len(observations))
	var born []*track
	for j, o := range observations {
		t := Touch{
			Phase:     PhaseMoved,
			Webcam:    o.Webcam,
			Screen:    o.Screen,
			World:     o.World,
			Area:      o.Area,
			Intensity: o.Intensity,
			InBounds:  o.InBounds,
			Frame:     frame,
			Timestamp: ts,
		}
		if i := trackFor[j]; i >= 0 {
			t.ID = tr.live[i].last.ID
			tr.live[i].last = t
			tr.live[i].missed = 0
		} else {
			t.ID = uuid.New()
			t.Phase = PhaseBegan
			born = append(born, &track{last: t})
		}
		out = append(out, t)
	}

	kept := tr.live[:0]
	for i, t := range tr.live {
		if claimed[i] {
			kept = append(kept, t)
			continue
		}
		t.missed++
		if t.missed > tr.config.MaxMissedFrames {
			out = append(out, ended(t.last, frame, ts))
			continue
		}
		kept = append(kept, t)
	}
	tr.live = append(kept, born...)

	return out
}

// Reset ends every live touch and returns the ended touches
func (tr *Tracker) Reset(frame int64, ts time.Time) []Touch {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	out := make([]Touch, 0, len(tr.live))
	for _, t := range tr.live {
		out = append(out, ended(t.last, frame, ts))
	}
	tr.live = nil
	return out
}

// Active returns the number of live touches
func (tr *Tracker) Active() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.live)
}

func ended(last Touch, frame int64, ts time.Time) Touch {
	last.Phase = PhaseEnded
	last.Frame = frame
	last.Timestamp = ts
	return last
}
