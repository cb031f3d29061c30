package delivery

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"leadcast/internal/location"
)

// DefaultCaptionLimit is the Bot API caption limit in characters.
const DefaultCaptionLimit = 1024

const mapLinkFormat = "https://maps.google.com/?q=%s,%s"

// CaptionOptions controls caption framing.
type CaptionOptions struct {
	Header string
	Footer string
	Limit  int
}

// BuildCaption renders the HTML caption sent with bot uploads. Values are
// escaped and the result never exceeds opts.Limit runes.
func BuildCaption(record Record, snap location.Snapshot, opts CaptionOptions) string {
	lines := captionLines(record, snap, opts, true)
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultCaptionLimit
	}
	return fitLines(lines, limit)
}

// BuildShareText renders the same layout as plain text for share targets
// and manual share links.
func BuildShareText(record Record, snap location.Snapshot, opts CaptionOptions) string {
	return strings.Join(captionLines(record, snap, opts, false), "\n")
}

func captionLines(record Record, snap location.Snapshot, opts CaptionOptions, markup bool) []string {
	escape := func(s string) string { return s }
	bold := func(s string) string { return s }
	if markup {
		escape = html.EscapeString
		bold = func(s string) string { return "<b>" + html.EscapeString(s) + "</b>" }
	}

	var lines []string
	if header := strings.TrimSpace(opts.Header); header != "" {
		lines = append(lines, bold(header), "")
	}

	lines = append(lines, "👨‍👩‍👧‍👦 "+bold("PARTICIPANT DATA:"))
	for _, field := range record {
		lines = append(lines, fmt.Sprintf("• %s: %s", escape(field.Label()), escape(strings.TrimSpace(field.Value))))
	}

	lines = append(lines, "", "📍 "+bold("LOCATION:"))
	if snap.Determined() {
		fix := snap.Fix
		lines = append(lines,
			fmt.Sprintf("• Coordinates: %.6f, %.6f", fix.Latitude, fix.Longitude),
			fmt.Sprintf("• Accuracy: %.0f m", fix.AccuracyMeters),
			"• Map: "+escape(MapLink(fix.Latitude, fix.Longitude)),
		)
	} else {
		lines = append(lines, "• Not determined")
	}

	lines = append(lines, "", "📹 Video attached")
	if footer := strings.TrimSpace(opts.Footer); footer != "" {
		lines = append(lines, "", escape(footer))
	}
	return lines
}

// MapLink returns the map URL for a coordinate pair.
func MapLink(lat, lon float64) string {
	return fmt.Sprintf(mapLinkFormat,
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lon, 'f', -1, 64))
}

// fitLines joins lines within limit runes. Lines carrying markup are kept
// whole or dropped; plain lines may be cut but never inside an entity.
func fitLines(lines []string, limit int) string {
	full := strings.Join(lines, "\n")
	if runeLen(full) <= limit {
		return full
	}

	budget := limit - 1
	var b strings.Builder
	used := 0
	for i, line := range lines {
		sep := 0
		if i > 0 {
			sep = 1
		}
		n := runeLen(line)
		if used+sep+n <= budget {
			if sep == 1 {
				b.WriteByte('\n')
			}
			b.WriteString(line)
			used += sep + n
			continue
		}
		remaining := budget - used - sep
		if remaining > 0 && !strings.Contains(line, "<") {
			if cut := cutOutsideEntity(line, remaining); cut != "" {
				if sep == 1 {
					b.WriteByte('\n')
				}
				b.WriteString(cut)
			}
		}
		break
	}
	b.WriteString("…")
	return b.String()
}

func cutOutsideEntity(line string, maxRunes int) string {
	r := []rune(line)
	if len(r) > maxRunes {
		r = r[:maxRunes]
	}
	if amp := strings.LastIndex(string(r), "&"); amp >= 0 && !strings.Contains(string(r)[amp:], ";") {
		return string(r)[:amp]
	}
	return string(r)
}

func runeLen(s string) int {
	return len([]rune(s))
}
