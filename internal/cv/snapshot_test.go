package cv

import (
	"image"
	"os"
	"path/filepath"
	"testing"
)

func TestMaskImageExpandsCells(t *testing.T) {
	mask := NewMotionMask(10, 10, 2)
	mask.Set(1, 1, 255)

	img := MaskImage(mask)
	if img.Bounds() != image.Rect(0, 0, 10, 10) {
		t.Fatalf("Expected frame-sized image, got %v", img.Bounds())
	}
	// Cell (1,1) covers pixels 2..3
	if img.NRGBAAt(2, 3) != motionColor {
		t.Errorf("Expected motion pixel at (2,3), got %v", img.NRGBAAt(2, 3))
	}
	if img.NRGBAAt(4, 4).R != 0 || img.NRGBAAt(4, 4).A != 255 {
		t.Errorf("Expected opaque black at (4,4), got %v", img.NRGBAAt(4, 4))
	}
}

func TestSaveDetectionSnapshot(t *testing.T) {
	mask := NewMotionMask(16, 16, 1)
	for y := 4; y < 8; y++ {
		for x := 4; x < 8; x++ {
			mask.Set(x, y, 200)
		}
	}
	detection := &Detection{
		Mask:     mask,
		Clusters: FindClusters(mask, &ClusterConfig{MinArea: 1, MaxClusters: 5, MaxClusterPixels: 100}),
	}

	dir := t.TempDir()
	for _, name := range []string{"mask.png", "nested/mask.webp"} {
		path := filepath.Join(dir, name)
		if err := SaveDetectionSnapshot(path, detection); err != nil {
			t.Fatalf("SaveDetectionSnapshot(%s) failed: %v", name, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Snapshot %s missing: %v", name, err)
		}
		if info.Size() == 0 {
			t.Errorf("Snapshot %s is empty", name)
		}
	}

	if err := SaveDetectionSnapshot(filepath.Join(dir, "x.png"), &Detection{}); err == nil {
		t.Error("Expected an error for a detection without a mask")
	}
}
