package cv

import (
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// Decoders are picked by extension rather than through image.Decode: tga
// registers an empty magic string that would claim every file.
var sequenceDecoders = map[string]func(io.Reader) (image.Image, error){
	".png":  png.Decode,
	".jpg":  jpeg.Decode,
	".jpeg": jpeg.Decode,
	".bmp":  bmp.Decode,
	".tif":  tiff.Decode,
	".tiff": tiff.Decode,
	".webp": webp.Decode,
	".tga":  tga.Decode,
}

// SequenceSource replays a directory of still images as a frame stream
type SequenceSource struct {
	files  []string
	next   int
	loop   bool
	width  int
	height int
	mu     sync.Mutex
}

// NewSequenceSource lists the image files of dir in lexical order.
// The first frame is decoded to fix the stream dimensions.
func NewSequenceSource(dir string, loop bool) (*SequenceSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sequence directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := sequenceDecoders[strings.ToLower(filepath.Ext(entry.Name()))]; ok {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no image files in %s", dir)
	}
	sort.Strings(files)

	first, err := LoadImage(files[0])
	if err != nil {
		return nil, err
	}

	return &SequenceSource{
		files:  files,
		loop:   loop,
		width:  first.Bounds().Dx(),
		height: first.Bounds().Dy(),
	}, nil
}

// CaptureFrame decodes the next image. Returns io.EOF once the sequence
// is exhausted and looping is off.
func (s *SequenceSource) CaptureFrame() (*image.RGBA, error) {
	s.mu.Lock()
	if s.next >= len(s.files) {
		if !s.loop {
			s.mu.Unlock()
			return nil, io.EOF
		}
		s.next = 0
	}
	path := s.files[s.next]
	s.next++
	s.mu.Unlock()

	frame, err := LoadImage(path)
	if err != nil {
		return nil, err
	}
	if frame.Bounds().Dx() != s.width || frame.Bounds().Dy() != s.height {
		return nil, fmt.Errorf("%s is %dx%d, stream is %dx%d: %w",
			filepath.Base(path), frame.Bounds().Dx(), frame.Bounds().Dy(), s.width, s.height, ErrFrameSizeMismatch)
	}
	return frame, nil
}

// GetDimensions returns the size shared by every frame in the sequence
func (s *SequenceSource) GetDimensions() (width, height int) {
	return s.width, s.height
}

// Len returns the number of frames in the sequence
func (s *SequenceSource) Len() int {
	return len(s.files)
}

// Rewind restarts the sequence from the first frame
func (s *SequenceSource) Rewind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = 0
}

// LoadImage decodes a still into an RGBA frame using the decoder for its extension
func LoadImage(path string) (*image.RGBA, error) {
	decode, ok := sequenceDecoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("unsupported image format: %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	defer file.Close()

	img, err := decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return ToRGBA(img), nil
}

// ToRGBA converts an image to *image.RGBA anchored at the origin
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}
