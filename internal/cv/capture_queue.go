package cv

import (
	"image"
	"sync"
)

// QueueSource is an in-memory frame source fed by Push
type QueueSource struct {
	frames []*image.RGBA
	width  int
	height int
	mu     sync.Mutex
}

// NewQueueSource creates a queue source for frames of the given size
func NewQueueSource(width, height int) *QueueSource {
	return &QueueSource{width: width, height: height}
}

// Push appends frames to the queue
func (q *QueueSource) Push(frames ...*image.RGBA) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.frames = append(q.frames, frames...)
}

// CaptureFrame pops the oldest queued frame, or ErrNoFrame when empty
func (q *QueueSource) CaptureFrame() (*image.RGBA, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 {
		return nil, ErrNoFrame
	}
	frame := q.frames[0]
	q.frames[0] = nil
	q.frames = q.frames[1:]
	return frame, nil
}

// GetDimensions returns the configured frame size
func (q *QueueSource) GetDimensions() (width, height int) {
	return q.width, q.height
}

// Pending returns the number of queued frames
func (q *QueueSource) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}
