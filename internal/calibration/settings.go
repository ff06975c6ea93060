package calibration

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"jordanella.com/webcam-touch/internal/cv"
)

// ErrSettingsNotFound is returned alongside defaults when no settings file exists
var ErrSettingsNotFound = fmt.Errorf("calibration settings not found: %w", os.ErrNotExist)

// Offset shifts prepared webcam coordinates
type Offset struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// World describes the orthographic camera that screen pixels project through
type World struct {
	Center    Vec2    `json:"center" yaml:"center"`
	OrthoSize float64 `json:"ortho_size" yaml:"ortho_size"` // Half the visible world height
}

// Settings is the persisted detection and calibration document
type Settings struct {
	// Detection
	Threshold        float64 `json:"threshold" yaml:"threshold"`
	MinArea          int     `json:"min_area" yaml:"min_area"`
	MaxArea          int     `json:"max_area" yaml:"max_area"`
	MaxClusters      int     `json:"max_clusters" yaml:"max_clusters"`
	MaxClusterPixels int     `json:"max_cluster_pixels" yaml:"max_cluster_pixels"`
	SampleStep       int     `json:"sample_step" yaml:"sample_step"`
	PollIntervalMS   int     `json:"poll_interval_ms" yaml:"poll_interval_ms"`

	// Camera placement
	CameraOffset   Offset  `json:"camera_offset" yaml:"camera_offset"`
	Rotation       float64 `json:"rotation" yaml:"rotation"` // Degrees, counter-clockwise
	Zoom           float64 `json:"zoom" yaml:"zoom"`
	FlipHorizontal bool    `json:"flip_horizontal" yaml:"flip_horizontal"`
	FlipVertical   bool    `json:"flip_vertical" yaml:"flip_vertical"`

	// Calibrated area
	WebcamCorners Quad  `json:"webcam_corners" yaml:"webcam_corners"`
	ScreenWidth   int   `json:"screen_width" yaml:"screen_width"`
	ScreenHeight  int   `json:"screen_height" yaml:"screen_height"`
	World         World `json:"world" yaml:"world"`
}

// DefaultSettings returns an uncalibrated identity mapping onto a 1920x1080 screen
func DefaultSettings() *Settings {
	motion := cv.DefaultMotionConfig()
	clusters := cv.DefaultClusterConfig()
	return &Settings{
		Threshold:        motion.Threshold,
		MinArea:          clusters.MinArea,
		MaxArea:          clusters.MaxArea,
		MaxClusters:      clusters.MaxClusters,
		MaxClusterPixels: clusters.MaxClusterPixels,
		SampleStep:       motion.SampleStep,
		PollIntervalMS:   33,
		Zoom:             1,
		WebcamCorners:    UnitQuad(),
		ScreenWidth:      1920,
		ScreenHeight:     1080,
		World: World{
			OrthoSize: 5,
		},
	}
}

// Clone returns a deep copy
func (s *Settings) Clone() *Settings {
	c := *s
	return &c
}

// Validate checks that the settings describe a usable detector and mapping
func (s *Settings) Validate() error {
	var errs []error
	if s.Threshold < 0 || s.Threshold > 1 {
		errs = append(errs, fmt.Errorf("threshold %.3f outside [0,1]", s.Threshold))
	}
	if s.SampleStep < 1 {
		errs = append(errs, fmt.Errorf("sample_step must be at least 1, got %d", s.SampleStep))
	}
	if s.MinArea < 0 {
		errs = append(errs, fmt.Errorf("min_area must not be negative, got %d", s.MinArea))
	}
	if s.MaxArea > 0 && s.MinArea > s.MaxArea {
		errs = append(errs, fmt.Errorf("min_area %d exceeds max_area %d", s.MinArea, s.MaxArea))
	}
	if s.MaxClusters < 1 {
		errs = append(errs, fmt.Errorf("max_clusters must be at least 1, got %d", s.MaxClusters))
	}
	if s.MaxClusterPixels < 1 {
		errs = append(errs, fmt.Errorf("max_cluster_pixels must be at least 1, got %d", s.MaxClusterPixels))
	}
	if s.PollIntervalMS < 1 {
		errs = append(errs, fmt.Errorf("poll_interval_ms must be at least 1, got %d", s.PollIntervalMS))
	}
	if s.Zoom <= 0 {
		errs = append(errs, fmt.Errorf("zoom must be positive, got %.3f", s.Zoom))
	}
	if s.ScreenWidth <= 0 || s.ScreenHeight <= 0 {
		errs = append(errs, fmt.Errorf("screen size %dx%d must be positive", s.ScreenWidth, s.ScreenHeight))
	}
	if s.World.OrthoSize <= 0 {
		errs = append(errs, fmt.Errorf("world ortho_size must be positive, got %.3f", s.World.OrthoSize))
	}
	if err := s.WebcamCorners.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("webcam_corners: %w", err))
	}
	return errors.Join(errs...)
}

// MotionConfig converts the detection fields for the differencer
func (s *Settings) MotionConfig() *cv.MotionConfig {
	return &cv.MotionConfig{
		Threshold:  s.Threshold,
		SampleStep: s.SampleStep,
		Workers:    1,
	}
}

// ClusterConfig converts the detection fields for the flood fill
func (s *Settings) ClusterConfig() *cv.ClusterConfig {
	return &cv.ClusterConfig{
		MinArea:          s.MinArea,
		MaxArea:          s.MaxArea,
		MaxClusters:      s.MaxClusters,
		MaxClusterPixels: s.MaxClusterPixels,
	}
}

// PollInterval is the processing loop period
func (s *Settings) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMS) * time.Millisecond
}

// LoadSettings reads a settings document. When the file does not exist the
// defaults are returned together with ErrSettingsNotFound.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSettings(), ErrSettingsNotFound
		}
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}

	// Fields missing from the file keep their defaults
	settings := DefaultSettings()
	if isYAML(path) {
		err = yaml.Unmarshal(data, settings)
	} else {
		err = json.Unmarshal(data, settings)
	}
	if err != nil {
		return nil, fmt.Errorf("settings: parse %s: %w", path, err)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("settings: invalid %s: %w", path, err)
	}
	return settings, nil
}

// SaveSettings writes the document atomically through a temp file in the same directory
func SaveSettings(path string, settings *Settings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("settings: refusing to save: %w", err)
	}

	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(settings)
	} else {
		data, err = json.MarshalIndent(settings, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("settings: create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*")
	if err != nil {
		return fmt.Errorf("settings: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("settings: write: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("settings: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("settings: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("settings: replace %s: %w", path, err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
