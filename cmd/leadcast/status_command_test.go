package main

import (
	"strings"
	"testing"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"

	"leadcast/internal/journal"
)

func TestStatusReportsFailuresAndRoutes(t *testing.T) {
	server, calls := newBotServer(t)
	env := setupCLITestEnv(t, server.URL)

	out, err := runCLI(t, []string{"status"}, env.configPath, "")
	if err == nil {
		t.Fatal("expected preflight failure for the missing ffmpeg binary")
	}
	requireContains(t, out, "Dependencies")
	requireContains(t, out, "Preflight")
	requireContains(t, out, "Accepted leads")
	requireContains(t, out, "@lead_bot")

	found := false
	for _, path := range calls.list() {
		if strings.HasSuffix(path, "/getMe") {
			found = true
		}
	}
	if !found {
		t.Fatalf("status should call getMe, calls = %v", calls.list())
	}
}

func TestStatusSkipBots(t *testing.T) {
	server, calls := newBotServer(t)
	env := setupCLITestEnv(t, server.URL)

	_, _ = runCLI(t, []string{"status", "--skip-bots"}, env.configPath, "")
	if len(calls.list()) != 0 {
		t.Fatalf("--skip-bots still called the bot: %v", calls.list())
	}
}

func TestRenderHistory(t *testing.T) {
	out := renderHistory([]journal.Entry{{
		AttemptID:     "0123456789abcdef",
		Outcome:       "accepted",
		Channel:       "telegram-document",
		Status:        "sent",
		Kind:          "payload-too-large",
		ArtifactBytes: 2048,
		Duration:      1500 * time.Millisecond,
		CreatedAt:     time.Now(),
	}})
	for _, want := range []string{"01234567", "telegram-document", "payload-too-large", "2.0 kB", "1.5s"} {
		requireContains(t, out, want)
	}
	if strings.Contains(out, "0123456789abcdef") {
		t.Fatalf("attempt id should be shortened: %s", out)
	}
}

func TestRenderStatusLine(t *testing.T) {
	plain := renderStatusLine("FFmpeg", statusOK, "ffmpeg version 7.0", false)
	if !strings.Contains(plain, "[OK] ffmpeg version 7.0") || strings.Contains(plain, "\x1b[") {
		t.Fatalf("plain line = %q", plain)
	}
	colored := renderStatusLine("FFmpeg", statusError, "", true)
	want := text.Colors{text.FgRed}.Sprint(renderStatusLine("FFmpeg", statusError, "", false))
	if colored != want {
		t.Fatalf("colored line = %q, want %q", colored, want)
	}
	if header := renderSectionHeader(" Routes ", false); header != "== Routes ==" {
		t.Fatalf("header = %q", header)
	}
}
