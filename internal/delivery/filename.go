package delivery

import (
	"fmt"
	"strings"
	"time"

	"leadcast/internal/textutil"
)

// FileName returns <prefix>_<identifier>_<unix-millis>.<ext>.
func FileName(prefix, identifier, ext string, at time.Time) string {
	prefix = textutil.SanitizeFileName(prefix)
	if prefix == "" {
		prefix = "LEAD"
	}
	prefix = strings.ReplaceAll(prefix, " ", "_")
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = ExtMP4
	}
	return fmt.Sprintf("%s_%s_%d.%s", prefix, textutil.FileToken(identifier), at.UnixMilli(), ext)
}
