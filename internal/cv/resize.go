package cv

import (
	"image"

	"golang.org/x/image/draw"
)

// Downscale resamples a frame to width x height. Frames already at or
// below the target size are returned unchanged.
func Downscale(img *image.RGBA, width, height int) *image.RGBA {
	if img == nil || width <= 0 || height <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= width && b.Dy() <= height {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// FitWithin returns the largest size with the source aspect ratio that fits in maxW x maxH
func FitWithin(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0
	}
	if maxW <= 0 || maxH <= 0 || (srcW <= maxW && srcH <= maxH) {
		return srcW, srcH
	}
	w := maxW
	h := srcH * maxW / srcW
	if h > maxH {
		h = maxH
		w = srcW * maxH / srcH
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}
