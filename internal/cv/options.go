package cv

// Option overrides detection settings for a single Detect call
type Option func(*cvOptions)

type cvOptions struct {
	threshold  *float64
	region     *Region
	sampleStep int
	minArea    int
	maxArea    int
}

// WithThreshold sets the motion threshold option
func WithThreshold(t float64) Option {
	return func(opts *cvOptions) {
		opts.threshold = &t
	}
}

// WithRegion sets the sampling region option
func WithRegion(r *Region) Option {
	return func(opts *cvOptions) {
		opts.region = r
	}
}

// WithSampleStep sets the pixel sampling step option
func WithSampleStep(step int) Option {
	return func(opts *cvOptions) {
		opts.sampleStep = step
	}
}

// WithAreaBounds sets the accepted blob area option
func WithAreaBounds(minArea, maxArea int) Option {
	return func(opts *cvOptions) {
		opts.minArea = minArea
		opts.maxArea = maxArea
	}
}

func (o *cvOptions) apply(motion MotionConfig, clusters ClusterConfig) (MotionConfig, ClusterConfig) {
	if o.threshold != nil {
		motion.Threshold = *o.threshold
	}
	if o.region != nil {
		motion.Region = o.region
	}
	if o.sampleStep > 0 {
		motion.SampleStep = o.sampleStep
	}
	if o.minArea > 0 || o.maxArea > 0 {
		clusters.MinArea = o.minArea
		clusters.MaxArea = o.maxArea
	}
	return motion, clusters
}
