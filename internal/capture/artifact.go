package capture

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"leadcast/internal/fileutil"
)

// Artifact is the finished recording. Its bytes are never modified after
// construction.
type Artifact struct {
	data      []byte
	format    Format
	createdAt time.Time
}

// NewArtifact copies data into a new artifact labelled with format.
func NewArtifact(data []byte, format Format, createdAt time.Time) *Artifact {
	return &Artifact{
		data:      append([]byte(nil), data...),
		format:    format,
		createdAt: createdAt,
	}
}

// LoadArtifact reads a file from disk. An empty label is left empty so the
// delivery layer can sniff the content.
func LoadArtifact(path string, format Format) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}
	return &Artifact{data: data, format: format, createdAt: info.ModTime()}, nil
}

// Bytes exposes the artifact contents. Callers must not modify the slice.
func (a *Artifact) Bytes() []byte { return a.data }

// Reader returns a fresh reader over the contents.
func (a *Artifact) Reader() io.Reader { return bytes.NewReader(a.data) }

// Size returns the artifact length in bytes.
func (a *Artifact) Size() int { return len(a.data) }

// Format returns the declared format label.
func (a *Artifact) Format() Format { return a.format }

// CreatedAt returns when the recording finished.
func (a *Artifact) CreatedAt() time.Time { return a.createdAt }

// WriteFile stores the artifact at path.
func (a *Artifact) WriteFile(path string) error {
	if err := fileutil.WriteFileVerified(path, a.data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}
