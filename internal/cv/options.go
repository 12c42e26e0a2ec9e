package cv

// Option configures a Calibrator or an Extractor
type Option func(*cvOptions)

type cvOptions struct {
	selector       RegionSelector
	annotate       bool
	detectGameOver bool
}

func defaultOptions() cvOptions {
	return cvOptions{
		selector:       LargestAreaSelector{},
		detectGameOver: true,
	}
}

func applyOptions(opts []Option) cvOptions {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithSelector replaces the largest-contour selection strategy
func WithSelector(s RegionSelector) Option {
	return func(opts *cvOptions) {
		if s != nil {
			opts.selector = s
		}
	}
}

// WithAnnotation makes the extractor return an annotated copy of each frame
func WithAnnotation(enabled bool) Option {
	return func(opts *cvOptions) {
		opts.annotate = enabled
	}
}

// WithGameStateDetection toggles the play-again and shop button checks
func WithGameStateDetection(enabled bool) Option {
	return func(opts *cvOptions) {
		opts.detectGameOver = enabled
	}
}
