package delivery

import (
	"strings"

	"github.com/wailsapp/mimetype"

	"leadcast/internal/capture"
)

// Container extensions produced by NormalizeFormat.
const (
	ExtMP4  = "mp4"
	ExtWebM = "webm"
	ExtMOV  = "mov"

	mimeMP4 = "video/mp4"
)

// NormalizedFormat is the upload label and file extension for an artifact.
type NormalizedFormat struct {
	Extension   string
	ContentType string
	Sniffed     bool
}

// NormalizeFormat maps the declared label to an extension and upload label.
// QuickTime is relabelled video/mp4 without re-encoding. Content sniffing
// runs only when the label is empty or names no known container.
func NormalizeFormat(label capture.Format, data []byte) NormalizedFormat {
	declared := strings.TrimSpace(string(label))
	if normalized, ok := fromLabel(declared); ok {
		return normalized
	}

	sniffed := mimetype.Detect(data)
	if sniffed != nil {
		if normalized, ok := fromLabel(sniffed.String()); ok {
			normalized.Sniffed = true
			return normalized
		}
	}
	if declared == "" {
		return NormalizedFormat{Extension: ExtMP4, ContentType: mimeMP4}
	}
	return NormalizedFormat{Extension: ExtMP4, ContentType: declared}
}

func fromLabel(label string) (NormalizedFormat, bool) {
	lower := strings.ToLower(label)
	switch {
	case lower == "":
		return NormalizedFormat{}, false
	case strings.Contains(lower, "webm"):
		return NormalizedFormat{Extension: ExtWebM, ContentType: label}, true
	case strings.Contains(lower, "mov"), strings.Contains(lower, "quicktime"):
		return NormalizedFormat{Extension: ExtMOV, ContentType: mimeMP4}, true
	case strings.Contains(lower, "mp4"):
		return NormalizedFormat{Extension: ExtMP4, ContentType: mimeMP4}, true
	default:
		return NormalizedFormat{}, false
	}
}
