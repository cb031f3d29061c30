package capture

// Range expresses an acceptable interval with a preferred value.
type Range struct {
	Min   float64
	Ideal float64
	Max   float64
}

// Clamp returns value constrained to the range bounds.
func (r Range) Clamp(value float64) float64 {
	if value < r.Min {
		return r.Min
	}
	if value > r.Max {
		return r.Max
	}
	return value
}

// VideoConstraints describes the requested camera configuration.
type VideoConstraints struct {
	Width      Range
	Height     Range
	FrameRate  Range
	FacingMode string
	// AspectRatio and ResizeMode are only set for the mobile family.
	AspectRatio *Range
	ResizeMode  string
}

// AudioConstraints describes the requested microphone processing.
type AudioConstraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
	SampleRate       int
}

// Constraints is the full device request handed to a Device.
type Constraints struct {
	Video VideoConstraints
	Audio AudioConstraints
}

const (
	FacingEnvironment  = "environment"
	ResizeCropAndScale = "crop-and-scale"
	defaultSampleRate  = 44100
)

// SelectCaptureConstraints returns the negotiated device request for the
// platform. Platform adjustments only add fields; the base set is always
// present.
func SelectCaptureConstraints(platform Platform) Constraints {
	c := Constraints{
		Video: VideoConstraints{
			Width:      Range{Min: 320, Ideal: 640, Max: 1280},
			Height:     Range{Min: 240, Ideal: 480, Max: 720},
			FrameRate:  Range{Min: 15, Ideal: 30, Max: 30},
			FacingMode: FacingEnvironment,
		},
		Audio: AudioConstraints{
			EchoCancellation: true,
			NoiseSuppression: true,
			AutoGainControl:  true,
			SampleRate:       defaultSampleRate,
		},
	}
	if platform.IsMobile() {
		c.Video.AspectRatio = &Range{Min: 1, Ideal: 16.0 / 9.0, Max: 2}
		c.Video.ResizeMode = ResizeCropAndScale
	}
	return c
}

// FrameSize returns the ideal frame dimensions. When an aspect ratio is
// requested the height follows the ideal width, clamped to the height range.
func (v VideoConstraints) FrameSize() (int, int) {
	width := v.Width.Ideal
	height := v.Height.Ideal
	if v.AspectRatio != nil && v.AspectRatio.Ideal > 0 {
		height = v.Height.Clamp(width / v.AspectRatio.Ideal)
	}
	w, h := int(width), int(height)
	// Encoders need even dimensions.
	return w &^ 1, h &^ 1
}
