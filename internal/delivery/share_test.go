package delivery

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"leadcast/internal/config"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestCommandShareExpandsPlaceholders(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "args.txt")
	script := writeScript(t, dir, "share", `printf '%s\n' "$@" > "`+out+`"`)

	share := NewCommandShare(config.Share{Command: []string{script, "--share", "{file}", "--title={title}", "{text}"}, Accept: []string{"video/"}})
	if !share.CanShare("video/mp4") {
		t.Fatal("video/mp4 should be accepted")
	}
	if share.CanShare("image/png") {
		t.Fatal("image/png should be refused")
	}
	if err := share.Share(context.Background(), ShareRequest{Title: "New lead", Text: "hello world", FilePath: "/tmp/a.mp4"}); err != nil {
		t.Fatalf("Share: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "--share\n/tmp/a.mp4\n--title=New lead\nhello world\n"
	if string(data) != want {
		t.Fatalf("args = %q, want %q", data, want)
	}
}

func TestCommandShareFailure(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "share", `echo "no device paired" >&2; exit 2`)
	share := NewCommandShare(config.Share{Command: []string{script}, Accept: []string{"video/"}})
	err := share.Share(context.Background(), ShareRequest{FilePath: "x"})
	if err == nil || !strings.Contains(err.Error(), "no device paired") {
		t.Fatalf("err = %v", err)
	}
}

func TestCommandShareMissingBinary(t *testing.T) {
	share := NewCommandShare(config.Share{Command: []string{"/nonexistent/leadcast-share"}, Accept: []string{"video/"}})
	if share.CanShare("video/mp4") {
		t.Fatal("missing binary should not be able to share")
	}
	err := share.Share(context.Background(), ShareRequest{FilePath: "x"})
	if KindOf(err) != KindPlatformShareUnsupported {
		t.Fatalf("kind = %q (%v)", KindOf(err), err)
	}
	if NewCommandShare(config.Share{}) != nil {
		t.Fatal("empty command should yield nil")
	}
}
