package cv

import (
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Failed to encode %s: %v", path, err)
	}
}

func TestSequenceSourceOrderAndEOF(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "frame_002.png"), solidFrame(8, 6, white))
	writePNG(t, filepath.Join(dir, "frame_001.png"), solidFrame(8, 6, black))
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatalf("Failed to write notes: %v", err)
	}

	source, err := NewSequenceSource(dir, false)
	if err != nil {
		t.Fatalf("NewSequenceSource failed: %v", err)
	}

	if source.Len() != 2 {
		t.Errorf("Expected 2 frames, got %d", source.Len())
	}
	if w, h := source.GetDimensions(); w != 8 || h != 6 {
		t.Errorf("Expected 8x6, got %dx%d", w, h)
	}

	first, err := source.CaptureFrame()
	if err != nil {
		t.Fatalf("CaptureFrame failed: %v", err)
	}
	if first.RGBAAt(0, 0) != black {
		t.Errorf("Expected frame_001 (black) first, got %v", first.RGBAAt(0, 0))
	}

	if _, err := source.CaptureFrame(); err != nil {
		t.Fatalf("CaptureFrame failed: %v", err)
	}
	if _, err := source.CaptureFrame(); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF after the last frame, got %v", err)
	}

	source.Rewind()
	if _, err := source.CaptureFrame(); err != nil {
		t.Errorf("Expected a frame after Rewind, got %v", err)
	}
}

func TestLoadImageFormats(t *testing.T) {
	dir := t.TempDir()
	frame := solidFrame(4, 3, white)

	encoders := map[string]func(io.Writer, image.Image) error{
		"frame.png": png.Encode,
		"frame.jpg": func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
		},
		"frame.bmp": bmp.Encode,
		"frame.tga": tga.Encode,
		"frame.tif": func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, nil)
		},
	}

	for name, encode := range encoders {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			f, err := os.Create(path)
			if err != nil {
				t.Fatalf("Failed to create %s: %v", name, err)
			}
			if err := encode(f, frame); err != nil {
				f.Close()
				t.Fatalf("Failed to encode %s: %v", name, err)
			}
			f.Close()

			img, err := LoadImage(path)
			if err != nil {
				t.Fatalf("LoadImage failed: %v", err)
			}
			if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
				t.Errorf("Expected 4x3, got %dx%d", b.Dx(), b.Dy())
			}
			if c := img.RGBAAt(1, 1); c.R < 240 || c.G < 240 || c.B < 240 {
				t.Errorf("Expected a white pixel, got %v", c)
			}
		})
	}
}

func TestLoadImageRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.gif")
	if err := os.WriteFile(path, []byte("GIF89a"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := LoadImage(path); err == nil {
		t.Error("Expected an error for an unsupported extension")
	}
}

func TestSequenceSourceLoops(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), solidFrame(4, 4, black))

	source, err := NewSequenceSource(dir, true)
	if err != nil {
		t.Fatalf("NewSequenceSource failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := source.CaptureFrame(); err != nil {
			t.Fatalf("Looping capture %d failed: %v", i, err)
		}
	}
}

func TestSequenceSourceSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), solidFrame(4, 4, black))
	writePNG(t, filepath.Join(dir, "b.png"), solidFrame(5, 4, black))

	source, err := NewSequenceSource(dir, false)
	if err != nil {
		t.Fatalf("NewSequenceSource failed: %v", err)
	}
	source.CaptureFrame()
	if _, err := source.CaptureFrame(); !errors.Is(err, ErrFrameSizeMismatch) {
		t.Errorf("Expected ErrFrameSizeMismatch, got %v", err)
	}
}

func TestSequenceSourceEmptyDirectory(t *testing.T) {
	if _, err := NewSequenceSource(t.TempDir(), false); err == nil {
		t.Error("Expected an error for a directory without images")
	}
}

func TestQueueSource(t *testing.T) {
	queue := NewQueueSource(4, 4)
	if _, err := queue.CaptureFrame(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Expected ErrNoFrame from an empty queue, got %v", err)
	}

	a, b := solidFrame(4, 4, black), solidFrame(4, 4, white)
	queue.Push(a, b)
	if queue.Pending() != 2 {
		t.Errorf("Expected 2 pending frames, got %d", queue.Pending())
	}

	got, _ := queue.CaptureFrame()
	if got != a {
		t.Error("Expected frames in FIFO order")
	}
}

func TestOpenSource(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "frame_001.png"), solidFrame(8, 6, black))

	source, err := OpenSource(&CaptureConfig{Method: CaptureMethodSequence, SequenceDir: dir})
	if err != nil {
		t.Fatalf("OpenSource failed: %v", err)
	}
	if _, ok := source.(*SequenceSource); !ok {
		t.Errorf("Expected a sequence source, got %T", source)
	}

	if _, err := OpenSource(&CaptureConfig{Method: CaptureMethodQueue}); err == nil {
		t.Error("Expected an error opening a queue source from config")
	}
}

func TestParseCaptureMethod(t *testing.T) {
	tests := map[string]CaptureMethod{
		"webcam":   CaptureMethodWebcam,
		"screen":   CaptureMethodScreen,
		"sequence": CaptureMethodSequence,
		"queue":    CaptureMethodQueue,
	}
	for name, want := range tests {
		got, ok := ParseCaptureMethod(name)
		if !ok || got != want {
			t.Errorf("ParseCaptureMethod(%q) = %v, %v", name, got, ok)
		}
		if got.String() != name {
			t.Errorf("Expected %v to format as %q, got %q", got, name, got.String())
		}
	}

	if _, ok := ParseCaptureMethod("floppy"); ok {
		t.Error("Expected unknown method to fail")
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		srcW, srcH, maxW, maxH int
		wantW, wantH           int
	}{
		{640, 480, 320, 240, 320, 240},
		{1920, 1080, 320, 240, 320, 180},
		{100, 100, 320, 240, 100, 100},
		{480, 640, 320, 240, 180, 240},
	}
	for _, tt := range tests {
		w, h := FitWithin(tt.srcW, tt.srcH, tt.maxW, tt.maxH)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("FitWithin(%d,%d,%d,%d) = %dx%d, want %dx%d",
				tt.srcW, tt.srcH, tt.maxW, tt.maxH, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestParseRegion(t *testing.T) {
	r, err := ParseRegion("10,20-110,220")
	if err != nil {
		t.Fatalf("ParseRegion failed: %v", err)
	}
	if r.Width() != 100 || r.Height() != 200 {
		t.Errorf("Expected 100x200, got %dx%d", r.Width(), r.Height())
	}
	if r.String() != "10,20-110,220" {
		t.Errorf("Expected round trip, got %q", r.String())
	}
	if _, err := ParseRegion("10,20-5,5"); err == nil {
		t.Error("Expected an error for an inverted region")
	}
}
