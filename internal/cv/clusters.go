package cv

import "image"

// ClusterConfig bounds the flood fill and filters the blobs it finds
type ClusterConfig struct {
	MinArea          int // Minimum cells for a blob to count as a touch
	MaxArea          int // Maximum cells, 0 = unbounded
	MaxClusters      int // Stop once this many blobs are accepted
	MaxClusterPixels int // Cells accumulated per blob before it is truncated
}

// DefaultClusterConfig returns recommended settings
func DefaultClusterConfig() *ClusterConfig {
	return &ClusterConfig{
		MinArea:          10,
		MaxArea:          800,
		MaxClusters:      5,
		MaxClusterPixels: 1000,
	}
}

// Cluster is a connected blob of motion cells
type Cluster struct {
	Area      int             // Cells counted into the statistics
	Centroid  Vec             // Normalized, origin bottom-left
	Intensity float64         // Mean channel value of the blob, 0.0-1.0
	Bounds    image.Rectangle // Frame pixels, origin top-left
}

// Vec is a normalized 2D coordinate
type Vec struct {
	X, Y float64
}

var (
	neighbourDX = [8]int{-1, 0, 1, -1, 1, -1, 0, 1}
	neighbourDY = [8]int{-1, -1, -1, 0, 0, 1, 1, 1}
)

// FindClusters groups 8-connected motion cells into blobs and returns the
// ones whose area falls within the configured bounds, in scan order
func FindClusters(mask *MotionMask, config *ClusterConfig) []Cluster {
	if mask == nil || mask.Count == 0 {
		return []Cluster{}
	}
	if config == nil {
		config = DefaultClusterConfig()
	}
	maxClusters := config.MaxClusters
	if maxClusters <= 0 {
		maxClusters = DefaultClusterConfig().MaxClusters
	}
	maxPixels := config.MaxClusterPixels
	if maxPixels <= 0 {
		maxPixels = DefaultClusterConfig().MaxClusterPixels
	}

	w, h := mask.Width, mask.Height
	visited := make([]bool, w*h)
	queue := make([]int, 0, 256)
	clusters := []Cluster{}

	for y := 0; y < h && len(clusters) < maxClusters; y++ {
		for x := 0; x < w && len(clusters) < maxClusters; x++ {
			seed := y*w + x
			if !mask.bits[seed] || visited[seed] {
				continue
			}

			queue = queue[:0]
			queue = append(queue, seed)
			visited[seed] = true

			var sumX, sumY, sumLevel int
			area := 0
			truncated := false
			minX, minY, maxX, maxY := x, y, x, y

			for len(queue) > 0 {
				curr := queue[0]
				queue = queue[1:]

				cx := curr % w
				cy := curr / w

				if area < maxPixels {
					area++
					sumX += cx
					sumY += cy
					sumLevel += int(mask.levels[curr])
					if cx < minX {
						minX = cx
					}
					if cx > maxX {
						maxX = cx
					}
					if cy < minY {
						minY = cy
					}
					if cy > maxY {
						maxY = cy
					}
				} else {
					// Keep draining so the rest of the blob cannot seed new clusters
					truncated = true
				}

				for d := 0; d < 8; d++ {
					nx := cx + neighbourDX[d]
					ny := cy + neighbourDY[d]
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						continue
					}
					ni := ny*w + nx
					if mask.bits[ni] && !visited[ni] {
						visited[ni] = true
						queue = append(queue, ni)
					}
				}
			}

			if truncated || area < config.MinArea {
				continue
			}
			if config.MaxArea > 0 && area > config.MaxArea {
				continue
			}

			step := mask.Step
			meanX := float64(sumX*step) / float64(area)
			meanY := float64(sumY*step) / float64(area)

			clusters = append(clusters, Cluster{
				Area: area,
				Centroid: Vec{
					X: meanX / float64(mask.FrameWidth),
					Y: 1 - meanY/float64(mask.FrameHeight),
				},
				Intensity: float64(sumLevel) / float64(area) / 255,
				Bounds: image.Rect(minX*step, minY*step, maxX*step+step, maxY*step+step).
					Intersect(image.Rect(0, 0, mask.FrameWidth, mask.FrameHeight)),
			})
		}
	}

	return clusters
}
