package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"leadcast/internal/testsupport"
)

type botCalls struct {
	mu    sync.Mutex
	paths []string
}

func (b *botCalls) add(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paths = append(b.paths, path)
}

func (b *botCalls) list() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.paths...)
}

func newBotServer(t *testing.T) (*httptest.Server, *botCalls) {
	t.Helper()
	calls := &botCalls{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.add(r.URL.Path)
		if strings.HasSuffix(r.URL.Path, "/getMe") {
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"username":"lead_bot"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":11}}`))
	}))
	t.Cleanup(server.Close)
	return server, calls
}

type cliTestEnv struct {
	base       string
	configPath string
	saveDir    string
}

func setupCLITestEnv(t *testing.T, botURL string) *cliTestEnv {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	env := &cliTestEnv{
		base:       base,
		configPath: filepath.Join(base, "config.toml"),
		saveDir:    filepath.Join(base, "save"),
	}
	content := fmt.Sprintf(`[paths]
save_dir = %q
staging_dir = %q
log_dir = %q
lock_dir = %q

[capture]
ffmpeg_binary = %q

[delivery]
default_outcome = "accepted"
reset_delay_ms = 0

[telegram]
base_url = %q

[routes.accepted]
name = "Accepted leads"
bot_token = "123:abc"
chat_id = "-100"

[location]
provider = "none"

[logging]
level = "error"
`,
		env.saveDir,
		filepath.Join(base, "staging"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "locks"),
		filepath.Join(base, "missing-ffmpeg"),
		botURL,
	)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

// edit rewrites the test config, replacing old with replacement.
func (e *cliTestEnv) edit(t *testing.T, old, replacement string) {
	t.Helper()
	data, err := os.ReadFile(e.configPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	content := strings.Replace(string(data), old, replacement, 1)
	if err := os.WriteFile(e.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath, stdin string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func writeVideo(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "clip.mp4")
	testsupport.WriteVideo(t, path, 256)
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
