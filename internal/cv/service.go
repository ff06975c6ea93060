package cv

import (
	"fmt"
	"image"
	"sync"
	"time"
)

// Detection is the outcome of differencing one frame against its predecessor
type Detection struct {
	Frame    *image.RGBA // Current frame at detection resolution
	Mask     *MotionMask // Nil while priming
	Clusters []Cluster
	Primed   bool // False for the first frame after a reset
	Elapsed  time.Duration
}

// Service owns the previous/current frame pair and runs the detection pipeline
type Service struct {
	source   FrameSource
	motion   MotionConfig
	clusters ClusterConfig

	// Detection resolution, 0 keeps the source size
	targetWidth  int
	targetHeight int

	prevFrame *image.RGBA

	// Frame caching for repeated reads of the same moment
	cachedFrame     *image.RGBA
	cachedFrameTime time.Time
	cacheDuration   time.Duration

	mu sync.RWMutex
}

// NewService creates a new CV service. source may be nil when frames are
// only ever handed in through DetectInFrame.
func NewService(source FrameSource) *Service {
	return &Service{
		source:        source,
		motion:        *DefaultMotionConfig(),
		clusters:      *DefaultClusterConfig(),
		cacheDuration: 100 * time.Millisecond,
	}
}

// NewServiceWithCache creates a CV service with custom cache duration
func NewServiceWithCache(source FrameSource, cacheDuration time.Duration) *Service {
	s := NewService(source)
	s.cacheDuration = cacheDuration
	return s
}

// WithConfig sets the differencing and clustering settings
func (s *Service) WithConfig(motion *MotionConfig, clusters *ClusterConfig) *Service {
	s.SetConfig(motion, clusters)
	return s
}

// WithTargetSize sets the detection resolution
func (s *Service) WithTargetSize(width, height int) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targetWidth = width
	s.targetHeight = height
	return s
}

// SetConfig replaces the differencing and clustering settings. A change of
// sampling step takes effect on the next frame pair.
func (s *Service) SetConfig(motion *MotionConfig, clusters *ClusterConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if motion != nil {
		s.motion = *motion
	}
	if clusters != nil {
		s.clusters = *clusters
	}
}

// Config returns copies of the current settings
func (s *Service) Config() (MotionConfig, ClusterConfig) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.motion, s.clusters
}

// CaptureFrame captures a frame at detection resolution with optional caching
func (s *Service) CaptureFrame(useCache bool) (*image.RGBA, error) {
	if s.source == nil {
		return nil, ErrNoFrame
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check if cached frame is still valid
	if useCache && s.cachedFrame != nil {
		if time.Since(s.cachedFrameTime) < s.cacheDuration {
			return s.cachedFrame, nil
		}
	}

	frame, err := s.source.CaptureFrame()
	if err != nil {
		return nil, err
	}
	frame = s.scale(frame)

	if useCache {
		s.cachedFrame = frame
		s.cachedFrameTime = time.Now()
	}

	return frame, nil
}

// InvalidateCache forces next capture to get fresh frame
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cachedFrame = nil
}

// GetDimensions returns the detection resolution
func (s *Service) GetDimensions() (width, height int) {
	if s.source == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.targetWidth, s.targetHeight
	}
	w, h := s.source.GetDimensions()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.targetWidth > 0 && s.targetHeight > 0 {
		return FitWithin(w, h, s.targetWidth, s.targetHeight)
	}
	return w, h
}

// Detect captures a fresh frame and differences it against the previous one
func (s *Service) Detect(opts ...Option) (*Detection, error) {
	frame, err := s.CaptureFrame(false)
	if err != nil {
		return nil, fmt.Errorf("failed to capture frame: %w", err)
	}
	return s.detect(frame, false, opts...)
}

// DetectInFrame differences a caller-supplied frame against the previous one
func (s *Service) DetectInFrame(frame *image.RGBA, opts ...Option) (*Detection, error) {
	if frame == nil {
		return nil, ErrNoFrame
	}
	return s.detect(frame, true, opts...)
}

func (s *Service) detect(frame *image.RGBA, needsScale bool, opts ...Option) (*Detection, error) {
	start := time.Now()

	s.mu.Lock()
	if needsScale {
		frame = s.scale(frame)
	}
	prev := s.prevFrame
	s.prevFrame = frame
	motion, clusters := s.motion, s.clusters
	s.mu.Unlock()

	options := &cvOptions{}
	for _, opt := range opts {
		opt(options)
	}
	motion, clusters = options.apply(motion, clusters)

	detection := &Detection{Frame: frame, Clusters: []Cluster{}}

	// Prime on the first frame, or after the resolution changed
	if prev == nil || prev.Bounds().Size() != frame.Bounds().Size() {
		detection.Elapsed = time.Since(start)
		return detection, nil
	}

	mask, err := DiffFrames(prev, frame, &motion)
	if err != nil {
		return nil, err
	}
	detection.Mask = mask
	detection.Clusters = FindClusters(mask, &clusters)
	detection.Primed = true
	detection.Elapsed = time.Since(start)
	return detection, nil
}

// Reset drops the previous frame so the next detection primes again
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prevFrame = nil
	s.cachedFrame = nil
}

// scale must be called with s.mu held
func (s *Service) scale(frame *image.RGBA) *image.RGBA {
	if s.targetWidth <= 0 || s.targetHeight <= 0 {
		return frame
	}
	b := frame.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), s.targetWidth, s.targetHeight)
	return Downscale(frame, w, h)
}
