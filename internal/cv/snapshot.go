package cv

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
)

var (
	motionColor  = color.NRGBA{255, 255, 255, 255}
	clusterColor = color.NRGBA{255, 0, 0, 255}
)

// MaskImage renders a motion mask at frame resolution, motion cells white on black
func MaskImage(mask *MotionMask) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, mask.FrameWidth, mask.FrameHeight))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}

	for cy := 0; cy < mask.Height; cy++ {
		for cx := 0; cx < mask.Width; cx++ {
			if !mask.At(cx, cy) {
				continue
			}
			for y := cy * mask.Step; y < (cy+1)*mask.Step && y < mask.FrameHeight; y++ {
				for x := cx * mask.Step; x < (cx+1)*mask.Step && x < mask.FrameWidth; x++ {
					img.SetNRGBA(x, y, motionColor)
				}
			}
		}
	}
	return img
}

// DrawClusters outlines each cluster's bounds on img
func DrawClusters(img *image.NRGBA, clusters []Cluster) {
	for _, c := range clusters {
		drawRect(img, c.Bounds.Intersect(img.Bounds()), clusterColor)
	}
}

func drawRect(img *image.NRGBA, rect image.Rectangle, col color.NRGBA) {
	if rect.Empty() {
		return
	}
	// Top and bottom
	for x := rect.Min.X; x < rect.Max.X; x++ {
		img.SetNRGBA(x, rect.Min.Y, col)
		img.SetNRGBA(x, rect.Max.Y-1, col)
	}
	// Left and right
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		img.SetNRGBA(rect.Min.X, y, col)
		img.SetNRGBA(rect.Max.X-1, y, col)
	}
}

// SaveSnapshot writes img as WebP when path ends in .webp, PNG otherwise
func SaveSnapshot(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot %s: %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".webp") {
		if err := nativewebp.Encode(f, img, nil); err != nil {
			return fmt.Errorf("WebP encode: %w", err)
		}
		return nil
	}

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("PNG encode: %w", err)
	}
	return nil
}

// SaveDetectionSnapshot renders a detection's mask with cluster outlines
func SaveDetectionSnapshot(path string, detection *Detection) error {
	if detection == nil || detection.Mask == nil {
		return ErrNoFrame
	}
	img := MaskImage(detection.Mask)
	DrawClusters(img, detection.Clusters)
	return SaveSnapshot(path, img)
}
