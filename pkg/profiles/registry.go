// Package profiles manages named calibration profiles stored as YAML.
// A profile overrides only the fields it sets; everything else comes from
// the base settings document.
package profiles

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
	"jordanella.com/webcam-touch/internal/calibration"
)

// Profile is a named set of overrides
type Profile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	Threshold        *float64 `yaml:"threshold,omitempty"`
	MinArea          *int     `yaml:"min_area,omitempty"`
	MaxArea          *int     `yaml:"max_area,omitempty"`
	MaxClusters      *int     `yaml:"max_clusters,omitempty"`
	MaxClusterPixels *int     `yaml:"max_cluster_pixels,omitempty"`
	SampleStep       *int     `yaml:"sample_step,omitempty"`
	PollIntervalMS   *int     `yaml:"poll_interval_ms,omitempty"`

	CameraOffset   *calibration.Offset `yaml:"camera_offset,omitempty"`
	Rotation       *float64            `yaml:"rotation,omitempty"`
	Zoom           *float64            `yaml:"zoom,omitempty"`
	FlipHorizontal *bool               `yaml:"flip_horizontal,omitempty"`
	FlipVertical   *bool               `yaml:"flip_vertical,omitempty"`

	WebcamCorners *calibration.Quad  `yaml:"webcam_corners,omitempty"`
	Screen        *ScreenDef         `yaml:"screen,omitempty"`
	World         *calibration.World `yaml:"world,omitempty"`
}

// ScreenDef is the target screen size in pixels
type ScreenDef struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// ProfileFile represents the structure of a profile YAML file
type ProfileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// Apply writes the profile's overrides into settings
func (p *Profile) Apply(s *calibration.Settings) {
	if p.Threshold != nil {
		s.Threshold = *p.Threshold
	}
	if p.MinArea != nil {
		s.MinArea = *p.MinArea
	}
	if p.MaxArea != nil {
		s.MaxArea = *p.MaxArea
	}
	if p.MaxClusters != nil {
		s.MaxClusters = *p.MaxClusters
	}
	if p.MaxClusterPixels != nil {
		s.MaxClusterPixels = *p.MaxClusterPixels
	}
	if p.SampleStep != nil {
		s.SampleStep = *p.SampleStep
	}
	if p.PollIntervalMS != nil {
		s.PollIntervalMS = *p.PollIntervalMS
	}
	if p.CameraOffset != nil {
		s.CameraOffset = *p.CameraOffset
	}
	if p.Rotation != nil {
		s.Rotation = *p.Rotation
	}
	if p.Zoom != nil {
		s.Zoom = *p.Zoom
	}
	if p.FlipHorizontal != nil {
		s.FlipHorizontal = *p.FlipHorizontal
	}
	if p.FlipVertical != nil {
		s.FlipVertical = *p.FlipVertical
	}
	if p.WebcamCorners != nil {
		s.WebcamCorners = *p.WebcamCorners
	}
	if p.Screen != nil {
		s.ScreenWidth = p.Screen.Width
		s.ScreenHeight = p.Screen.Height
	}
	if p.World != nil {
		s.World = *p.World
	}
}

// FromSettings captures every field of s as a profile
func FromSettings(name string, s *calibration.Settings) Profile {
	c := s.Clone()
	return Profile{
		Name:             name,
		Threshold:        &c.Threshold,
		MinArea:          &c.MinArea,
		MaxArea:          &c.MaxArea,
		MaxClusters:      &c.MaxClusters,
		MaxClusterPixels: &c.MaxClusterPixels,
		SampleStep:       &c.SampleStep,
		PollIntervalMS:   &c.PollIntervalMS,
		CameraOffset:     &c.CameraOffset,
		Rotation:         &c.Rotation,
		Zoom:             &c.Zoom,
		FlipHorizontal:   &c.FlipHorizontal,
		FlipVertical:     &c.FlipVertical,
		WebcamCorners:    &c.WebcamCorners,
		Screen:           &ScreenDef{Width: c.ScreenWidth, Height: c.ScreenHeight},
		World:            &c.World,
	}
}

// Registry manages a collection of profiles loaded from YAML files
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		profiles: make(map[string]Profile),
	}
}

// LoadFromFile loads profiles from a YAML file
func (r *Registry) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read profile file %s: %w", filePath, err)
	}

	var file ProfileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to unmarshal profile YAML: %w", err)
	}

	for i, p := range file.Profiles {
		if p.Name == "" {
			return fmt.Errorf("profile %d: name cannot be empty", i+1)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range file.Profiles {
		r.profiles[p.Name] = p
	}

	return nil
}

// LoadFromDirectory loads all YAML files from a directory
func (r *Registry) LoadFromDirectory(dirPath string) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return fmt.Errorf("failed to read profile directory %s: %w", dirPath, err)
	}

	var loadErrors []error

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		// Only process .yaml and .yml files
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		fullPath := filepath.Join(dirPath, entry.Name())
		if err := r.LoadFromFile(fullPath); err != nil {
			loadErrors = append(loadErrors, fmt.Errorf("file %s: %w", entry.Name(), err))
		}
	}

	if len(loadErrors) > 0 {
		return fmt.Errorf("failed to load %d profile files (first error): %w", len(loadErrors), loadErrors[0])
	}

	return nil
}

// Get retrieves a profile by name
func (r *Registry) Get(name string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[name]
	return p, ok
}

// Register adds a profile to the registry programmatically
func (r *Registry) Register(p Profile) error {
	if p.Name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.profiles[p.Name] = p
	return nil
}

// Has checks if a profile exists in the registry
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.profiles[name]
	return ok
}

// List returns all profile names in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of profiles in the registry
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.profiles)
}

// Remove removes a profile from the registry
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[name]; ok {
		delete(r.profiles, name)
		return true
	}
	return false
}

// Resolve applies the named profile on a copy of base and validates the result
func (r *Registry) Resolve(name string, base *calibration.Settings) (*calibration.Settings, error) {
	p, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("profile '%s' not found in registry", name)
	}

	settings := base.Clone()
	p.Apply(settings)
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("profile '%s': %w", name, err)
	}
	return settings, nil
}

// SaveProfile writes p to <dir>/<name>.yaml, replacing any existing file
func SaveProfile(dir string, p Profile) (string, error) {
	if p.Name == "" {
		return "", fmt.Errorf("profile name cannot be empty")
	}
	if strings.ContainsAny(p.Name, `/\`) {
		return "", fmt.Errorf("profile name %q must not contain path separators", p.Name)
	}

	data, err := yaml.Marshal(ProfileFile{Profiles: []Profile{p}})
	if err != nil {
		return "", fmt.Errorf("failed to marshal profile: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create profile directory: %w", err)
	}

	path := filepath.Join(dir, p.Name+".yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write profile %s: %w", path, err)
	}
	return path, nil
}
