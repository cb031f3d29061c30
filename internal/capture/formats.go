package capture

import "strings"

// Format is a declared container/codec label such as
// `video/webm; codecs="vp9, opus"`.
type Format string

// FallbackFormat is used when no preferred candidate is supported.
const FallbackFormat Format = "video/webm"

// PreferredFormats lists candidates in priority order. MP4 with H.264/AAC
// leads because the bot endpoint plays it inline.
var PreferredFormats = []Format{
	`video/mp4; codecs="avc1.424028, mp4a.40.2"`,
	`video/webm; codecs="vp9, opus"`,
	`video/webm; codecs="vp8, opus"`,
	"video/mp4",
	"video/webm",
}

// SelectContainerFormat returns the first candidate reported as supported,
// or FallbackFormat. A nil candidate list uses PreferredFormats. The result
// is never empty.
func SelectContainerFormat(candidates []Format, supported func(Format) bool) Format {
	if candidates == nil {
		candidates = PreferredFormats
	}
	if supported == nil {
		return FallbackFormat
	}
	for _, candidate := range candidates {
		if strings.TrimSpace(string(candidate)) == "" {
			continue
		}
		if supported(candidate) {
			return candidate
		}
	}
	return FallbackFormat
}

// MIMEType returns the label without codec parameters.
func (f Format) MIMEType() string {
	base, _, _ := strings.Cut(string(f), ";")
	return strings.ToLower(strings.TrimSpace(base))
}

// Codecs returns the codec identifiers declared in the label.
func (f Format) Codecs() []string {
	_, params, ok := strings.Cut(string(f), ";")
	if !ok {
		return nil
	}
	for _, param := range strings.Split(params, ";") {
		key, value, found := strings.Cut(strings.TrimSpace(param), "=")
		if !found || !strings.EqualFold(strings.TrimSpace(key), "codecs") {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		var codecs []string
		for _, codec := range strings.Split(value, ",") {
			if codec = strings.TrimSpace(codec); codec != "" {
				codecs = append(codecs, codec)
			}
		}
		return codecs
	}
	return nil
}

// Container returns the short container name (mp4, webm, mov).
func (f Format) Container() string {
	mime := f.MIMEType()
	switch {
	case strings.Contains(mime, "webm"):
		return "webm"
	case strings.Contains(mime, "quicktime"):
		return "mov"
	default:
		return "mp4"
	}
}

// Encoding is the ffmpeg muxer and encoders that realize a Format.
type Encoding struct {
	Muxer        string
	VideoEncoder string
	AudioEncoder string
}

var codecEncoders = map[string]string{
	"avc1": "libx264",
	"h264": "libx264",
	"mp4a": "aac",
	"aac":  "aac",
	"vp9":  "libvpx-vp9",
	"vp09": "libvpx-vp9",
	"vp8":  "libvpx",
	"opus": "libopus",
}

// EncodingFor maps a label onto ffmpeg component names. Bare container labels
// use the container's common defaults.
func EncodingFor(f Format) (Encoding, bool) {
	var enc Encoding
	switch f.Container() {
	case "webm":
		enc = Encoding{Muxer: "webm", VideoEncoder: "libvpx", AudioEncoder: "libopus"}
	case "mov":
		enc = Encoding{Muxer: "mov", VideoEncoder: "libx264", AudioEncoder: "aac"}
	default:
		enc = Encoding{Muxer: "mp4", VideoEncoder: "libx264", AudioEncoder: "aac"}
	}
	for _, codec := range f.Codecs() {
		family, _, _ := strings.Cut(strings.ToLower(codec), ".")
		encoder, ok := codecEncoders[family]
		if !ok {
			return Encoding{}, false
		}
		switch family {
		case "mp4a", "aac", "opus":
			enc.AudioEncoder = encoder
		default:
			enc.VideoEncoder = encoder
		}
	}
	return enc, true
}
