package main

import (
	"fmt"
	"sync"

	"jordanella.com/webcam-touch/internal/calibration"
	"jordanella.com/webcam-touch/internal/logging"
	"jordanella.com/webcam-touch/internal/touch"
)

// cornerSession feeds detector touches into a calibrator. After a corner
// completes, samples are ignored until every touch has lifted so one
// press cannot fill two corners.
type cornerSession struct {
	calibrator *calibration.Calibrator
	logger     *logging.Logger
	done       chan struct{}

	mu          sync.Mutex
	waitRelease bool
	active      int
	finished    bool
}

func newCornerSession(calibrator *calibration.Calibrator, logger *logging.Logger) *cornerSession {
	return &cornerSession{
		calibrator: calibrator,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

func (s *cornerSession) begin() {
	s.calibrator.Begin()
	s.prompt()
}

func (s *cornerSession) prompt() {
	corner, ok := s.calibrator.Current()
	if !ok {
		return
	}
	_, target := s.calibrator.Progress()
	s.logger.Info(fmt.Sprintf("Touch and hold the %s corner of the screen (%d samples)", corner, target))
}

// handle is the detector handler
func (s *cornerSession) handle(touches []touch.Touch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return
	}

	for _, t := range touches {
		switch t.Phase {
		case touch.PhaseBegan:
			s.active++
		case touch.PhaseEnded:
			if s.active > 0 {
				s.active--
			}
			continue
		}

		if s.waitRelease {
			continue
		}

		corner, _ := s.calibrator.Current()
		complete := s.calibrator.Record(t.Webcam)
		if next, running := s.calibrator.Current(); complete || next != corner || !running {
			s.logger.Info(fmt.Sprintf("Recorded %s corner", corner))
			s.waitRelease = true
		}
		if complete {
			s.finished = true
			close(s.done)
			return
		}
	}

	if s.waitRelease && s.active == 0 {
		s.waitRelease = false
		s.prompt()
	}
}
