package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"leadcast/internal/config"
	"leadcast/internal/services/telegram"
	"leadcast/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	if r := CheckDirectoryAccess("Save", dir); !r.Passed {
		t.Fatalf("expected pass, got %+v", r)
	}
	missing := filepath.Join(dir, "missing")
	if r := CheckDirectoryAccess("Save", missing); r.Passed || !strings.Contains(r.Detail, "does not exist") {
		t.Fatalf("expected missing failure, got %+v", r)
	}
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if r := CheckDirectoryAccess("Save", file); r.Passed || !strings.Contains(r.Detail, "not a directory") {
		t.Fatalf("expected not-a-directory failure, got %+v", r)
	}
}

func TestCheckVideoDevice(t *testing.T) {
	if r := CheckVideoDevice("0:0"); !r.Passed {
		t.Fatalf("platform identifiers should pass, got %+v", r)
	}
	if r := CheckVideoDevice("/dev/leadcast-test-video-missing"); r.Passed {
		t.Fatalf("missing node should fail, got %+v", r)
	}
}

func writeFakeFFmpeg(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := `#!/bin/sh
case "$2" in
-version)
  echo "ffmpeg version 6.1 Copyright"
  ;;
-muxers)
  echo "File formats:"
  echo " ---"
  echo "  E mp4             MP4 (MPEG-4 Part 14)"
  echo "  E webm            WebM"
  ;;
-encoders)
  echo "Encoders:"
  echo " ------"
  echo " V....D libx264              libx264 H.264"
  echo " A....D aac                  AAC"
  ;;
esac
`
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCheckFFmpegAndFormat(t *testing.T) {
	ffmpeg := writeFakeFFmpeg(t)
	if r := CheckFFmpeg(context.Background(), ffmpeg); !r.Passed || !strings.Contains(r.Detail, "6.1") {
		t.Fatalf("ffmpeg check = %+v", r)
	}
	r := CheckCaptureFormat(context.Background(), ffmpeg)
	if !r.Passed || !strings.HasPrefix(r.Detail, "video/mp4") {
		t.Fatalf("format check = %+v", r)
	}
	if r := CheckFFmpeg(context.Background(), "clearly-not-ffmpeg"); r.Passed {
		t.Fatalf("missing ffmpeg passed: %+v", r)
	}
}

type fakeBots struct {
	users map[string]telegram.User
}

func (f fakeBots) GetMe(_ context.Context, token string) (telegram.User, error) {
	if user, ok := f.users[token]; ok {
		return user, nil
	}
	return telegram.User{}, &telegram.APIError{Method: "getMe", StatusCode: 401, Kind: telegram.KindUnauthorized, Description: "Unauthorized"}
}

func TestCheckBot(t *testing.T) {
	bots := fakeBots{users: map[string]telegram.User{"good": {Username: "lead_bot"}}}
	r := CheckBot(context.Background(), bots, "accepted", config.Route{BotToken: "good", ChatID: "-100"})
	if !r.Passed || r.Detail != "@lead_bot → chat -100" {
		t.Fatalf("good bot = %+v", r)
	}
	r = CheckBot(context.Background(), bots, "accepted", config.Route{BotToken: "bad", ChatID: "-100"})
	if r.Passed || r.Detail != "token rejected (unauthorized)" {
		t.Fatalf("bad bot = %+v", r)
	}
}

func TestRunAllSkipsBotsWithoutChecker(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRoute("accepted", "good", "1"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	cfg.Capture.FFmpegBinary = writeFakeFFmpeg(t)
	cfg.Capture.VideoDevice = "0:0"

	results := RunAll(context.Background(), cfg, nil)
	for _, r := range results {
		if strings.HasPrefix(r.Name, "Bot") {
			t.Fatalf("bot check ran without a checker: %+v", r)
		}
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}

	withBots := RunAll(context.Background(), cfg, fakeBots{})
	if failed := Failed(withBots); len(failed) != 1 || failed[0].Name != "Bot (accepted)" {
		t.Fatalf("expected the bot check to fail, got %+v", failed)
	}
}

func TestSummarizeBotError(t *testing.T) {
	if got := summarizeBotError(context.DeadlineExceeded); !strings.Contains(got, "timed out") {
		t.Fatalf("deadline summary = %q", got)
	}
	if got := summarizeBotError(errors.New("boom")); got != "boom" {
		t.Fatalf("generic summary = %q", got)
	}
}
