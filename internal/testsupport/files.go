package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// mp4Header is enough of an ISO-BMFF ftyp box for content sniffing.
var mp4Header = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'm', 'p', '4', '1'}

// VideoBytes returns size bytes that sniff as MP4. Sizes smaller than the
// header return the header alone.
func VideoBytes(size int) []byte {
	if size < len(mp4Header) {
		size = len(mp4Header)
	}
	data := make([]byte, size)
	copy(data, mp4Header)
	for i := len(mp4Header); i < size; i++ {
		data[i] = 0x42
	}
	return data
}

// WriteVideo writes VideoBytes(size) to path, creating parent directories.
func WriteVideo(t testing.TB, path string, size int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, VideoBytes(size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
