package delivery_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"leadcast/internal/capture"
	"leadcast/internal/config"
	"leadcast/internal/delivery"
	"leadcast/internal/journal"
	"leadcast/internal/notifications"
	"leadcast/internal/services"
	"leadcast/internal/services/telegram"
	"leadcast/internal/testsupport"
)

type recordingNotifier struct {
	mu       sync.Mutex
	events   []notifications.Event
	payloads []notifications.Payload
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.payloads = append(n.payloads, payload)
	return nil
}

func (n *recordingNotifier) Events() []notifications.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifications.Event(nil), n.events...)
}

type memoryJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (j *memoryJournal) Append(_ context.Context, entry journal.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
	return nil
}

func (j *memoryJournal) Entries() []journal.Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]journal.Entry(nil), j.entries...)
}

type upload struct {
	method string
	chatID string
	name   string
	data   []byte
	form   map[string]string
}

// botServer answers Bot API calls with per-method canned responses.
type botServer struct {
	t         *testing.T
	mu        sync.Mutex
	uploads   []upload
	responses map[string]response
	hits      atomic.Int32
	entered   chan struct{}
	release   chan struct{}
}

type response struct {
	status int
	body   string
}

func newBotServer(t *testing.T, responses map[string]response) (*botServer, *httptest.Server) {
	t.Helper()
	bot := &botServer{t: t, responses: responses}
	server := httptest.NewServer(http.HandlerFunc(bot.handle))
	t.Cleanup(server.Close)
	return bot, server
}

func (b *botServer) handle(w http.ResponseWriter, r *http.Request) {
	b.hits.Add(1)
	if b.entered != nil {
		b.entered <- struct{}{}
	}
	if b.release != nil {
		<-b.release
	}
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		b.t.Errorf("parse multipart: %v", err)
	}
	field := "video"
	if method == "sendDocument" {
		field = "document"
	}
	rec := upload{method: method, chatID: r.FormValue("chat_id"), form: map[string]string{}}
	if r.MultipartForm != nil {
		for key, values := range r.MultipartForm.Value {
			rec.form[key] = values[0]
		}
	}
	if file, header, err := r.FormFile(field); err == nil {
		rec.data, _ = io.ReadAll(file)
		rec.name = header.Filename
	}
	b.mu.Lock()
	b.uploads = append(b.uploads, rec)
	b.mu.Unlock()

	resp, ok := b.responses[method]
	if !ok {
		resp = response{status: http.StatusOK, body: `{"ok":true,"result":{"message_id":1}}`}
	}
	w.WriteHeader(resp.status)
	_, _ = w.Write([]byte(resp.body))
}

func (b *botServer) Uploads() []upload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]upload(nil), b.uploads...)
}

type harness struct {
	orchestrator *delivery.Orchestrator
	notifier     *recordingNotifier
	journal      *memoryJournal
	saveDir      string
	opened       []string
}

type harnessOptions struct {
	serverURL  string
	maxBytes   int64
	noFallback bool
	share      delivery.ShareFacility
	routes     map[string]config.Route
	httpClient *http.Client
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	h := &harness{
		notifier: &recordingNotifier{},
		journal:  &memoryJournal{},
		saveDir:  filepath.Join(t.TempDir(), "saved"),
	}
	var clientOpts []telegram.Option
	if opts.httpClient != nil {
		clientOpts = append(clientOpts, telegram.WithHTTPClient(opts.httpClient))
	}
	client := telegram.NewClient(telegram.Config{BaseURL: opts.serverURL}, clientOpts...)
	channels := []delivery.Channel{
		delivery.NewTelegramVideoChannel(client, opts.maxBytes),
		delivery.NewTelegramDocumentChannel(client, opts.maxBytes),
		delivery.NewShareChannel(opts.share, t.TempDir(), opts.share != nil),
	}
	if !opts.noFallback {
		channels = append(channels, delivery.NewLocalSaveChannel(h.saveDir, delivery.DefaultManualShareURL, nil,
			delivery.WithURLOpener(func(link string) error {
				h.opened = append(h.opened, link)
				return nil
			})))
	}
	routes := opts.routes
	if routes == nil {
		routes = map[string]config.Route{"accepted": {Name: "sales", BotToken: "123:abc", ChatID: "-100"}}
	}
	h.orchestrator = delivery.New(delivery.Options{
		Channels:        channels,
		Router:          delivery.NewRouter(routes, ""),
		Notifier:        h.notifier,
		Journal:         h.journal,
		Caption:         delivery.CaptionOptions{Header: "NEW LEAD", Footer: "leadcast"},
		FilePrefix:      "LEAD",
		IdentifierField: delivery.FieldChildName,
		ShareTitle:      "New lead",
	})
	return h
}

func newAttempt(t *testing.T, data []byte, outcome string) *delivery.Attempt {
	t.Helper()
	artifact := capture.NewArtifact(data, `video/mp4; codecs="avc1.424028, mp4a.40.2"`, time.Now())
	attempt, err := delivery.NewAttempt(sampleRecord(t), artifact, nil, outcome)
	if err != nil {
		t.Fatalf("NewAttempt: %v", err)
	}
	return attempt
}

func TestDeliverSendsVideo(t *testing.T) {
	bot, server := newBotServer(t, nil)
	h := newHarness(t, harnessOptions{serverURL: server.URL})
	attempt := newAttempt(t, []byte("video-bytes"), "accepted")

	result, err := h.orchestrator.Deliver(context.Background(), attempt)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if result.Status != delivery.StatusSent || result.Channel != delivery.ChannelTelegramVideo || !result.Delivered() {
		t.Fatalf("unexpected result %+v", result)
	}
	if attempt.InFlight() {
		t.Fatal("send guard should be released after Sent")
	}

	uploads := bot.Uploads()
	if len(uploads) != 1 || uploads[0].method != "sendVideo" {
		t.Fatalf("uploads = %+v", uploads)
	}
	got := uploads[0]
	if got.chatID != "-100" || string(got.data) != "video-bytes" || got.form["parse_mode"] != "HTML" {
		t.Fatalf("upload = %+v", got)
	}
	if !strings.HasPrefix(got.name, "LEAD_Misha_") || !strings.HasSuffix(got.name, ".mp4") {
		t.Fatalf("file name = %q", got.name)
	}
	if !strings.Contains(got.form["caption"], "Not determined") {
		t.Fatalf("caption should report unresolved location: %q", got.form["caption"])
	}

	if events := h.notifier.Events(); len(events) != 1 || events[0] != notifications.EventLeadSent {
		t.Fatalf("events = %v", events)
	}
	entries := h.journal.Entries()
	if len(entries) != 1 || entries[0].Status != "sent" || entries[0].AttemptID != attempt.ID || entries[0].ArtifactBytes != 11 {
		t.Fatalf("journal = %+v", entries)
	}
}

func TestConcurrentDeliverReachesNetworkOnce(t *testing.T) {
	bot, server := newBotServer(t, nil)
	bot.entered = make(chan struct{}, 4)
	bot.release = make(chan struct{})
	h := newHarness(t, harnessOptions{serverURL: server.URL})
	attempt := newAttempt(t, []byte("video"), "accepted")

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = h.orchestrator.Deliver(context.Background(), attempt)
	}()

	select {
	case <-bot.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first delivery never reached the server")
	}
	if _, err := h.orchestrator.Deliver(context.Background(), attempt); !errors.Is(err, delivery.ErrInFlight) {
		t.Fatalf("second Deliver err = %v, want ErrInFlight", err)
	}
	close(bot.release)
	wg.Wait()

	if firstErr != nil {
		t.Fatalf("first Deliver: %v", firstErr)
	}
	if hits := bot.hits.Load(); hits != 1 {
		t.Fatalf("server hits = %d, want 1", hits)
	}
	if events := h.notifier.Events(); len(events) != 1 {
		t.Fatalf("events = %v, want one", events)
	}
}

func TestOversizeVideoFallsBackToDocument(t *testing.T) {
	bot, server := newBotServer(t, map[string]response{
		"sendVideo": {status: http.StatusRequestEntityTooLarge, body: `{"ok":false,"error_code":413,"description":"Request Entity Too Large"}`},
	})
	h := newHarness(t, harnessOptions{serverURL: server.URL})
	attempt := newAttempt(t, []byte("large-video-bytes"), "accepted")

	result, err := h.orchestrator.Deliver(context.Background(), attempt)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if result.Status != delivery.StatusSent || result.Channel != delivery.ChannelTelegramDocument {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.Steps) != 2 || result.Steps[0].Kind != delivery.KindPayloadTooLarge {
		t.Fatalf("steps = %+v", result.Steps)
	}
	if result.Err != nil {
		t.Fatalf("sent result should not carry the earlier failure: %v", result.Err)
	}

	uploads := bot.Uploads()
	if len(uploads) != 2 {
		t.Fatalf("uploads = %+v", uploads)
	}
	video, document := uploads[0], uploads[1]
	if video.method != "sendVideo" || document.method != "sendDocument" {
		t.Fatalf("methods = %s, %s", video.method, document.method)
	}
	if string(video.data) != string(document.data) || video.chatID != document.chatID || video.name != document.name {
		t.Fatalf("document upload differs from video upload: %+v vs %+v", video, document)
	}
	if events := h.notifier.Events(); len(events) != 1 || events[0] != notifications.EventLeadSent {
		t.Fatalf("events = %v, want a single sent notification", events)
	}
	if entries := h.journal.Entries(); len(entries) != 2 || entries[0].Kind != string(delivery.KindPayloadTooLarge) {
		t.Fatalf("journal = %+v", entries)
	}
}

func TestLocalSizeCheckAvoidsNetwork(t *testing.T) {
	bot, server := newBotServer(t, nil)
	h := newHarness(t, harnessOptions{serverURL: server.URL, maxBytes: 4})
	attempt := newAttempt(t, []byte("0123456789"), "accepted")

	result, err := h.orchestrator.Deliver(context.Background(), attempt)
	if err != nil {
		t.Fatalf("manual result should not return an error: %v", err)
	}
	if bot.hits.Load() != 0 {
		t.Fatalf("oversize payload reached the network")
	}
	if result.Status != delivery.StatusManual || result.Channel != delivery.ChannelLocalSave {
		t.Fatalf("unexpected result %+v", result)
	}
	if delivery.KindOf(result.Err) != delivery.KindPayloadTooLarge {
		t.Fatalf("manual result should carry the last error, got %v", result.Err)
	}
	data, err := os.ReadFile(result.Path)
	if err != nil || string(data) != "0123456789" {
		t.Fatalf("saved file = %q, %v", data, err)
	}
	if len(h.opened) != 1 || !strings.Contains(h.opened[0], "text=") {
		t.Fatalf("manual link not opened: %v", h.opened)
	}
	if events := h.notifier.Events(); len(events) != 1 || events[0] != notifications.EventLeadManual {
		t.Fatalf("events = %v", events)
	}
	if attempt.InFlight() {
		t.Fatal("guard should be released after Manual")
	}
}

func TestGenericFailureSkipsDocument(t *testing.T) {
	bot, server := newBotServer(t, map[string]response{
		"sendVideo": {status: http.StatusBadRequest, body: `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`},
	})
	h := newHarness(t, harnessOptions{serverURL: server.URL})

	result, err := h.orchestrator.Deliver(context.Background(), newAttempt(t, []byte("video"), "accepted"))
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	for _, up := range bot.Uploads() {
		if up.method == "sendDocument" {
			t.Fatal("document channel should not run after destination-not-found")
		}
	}
	if result.Status != delivery.StatusManual || delivery.KindOf(result.Err) != delivery.KindDestinationNotFound {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestExhaustedChainFails(t *testing.T) {
	_, server := newBotServer(t, map[string]response{
		"sendVideo": {status: http.StatusUnauthorized, body: `{"ok":false,"error_code":401,"description":"Unauthorized"}`},
	})
	h := newHarness(t, harnessOptions{serverURL: server.URL, noFallback: true})
	attempt := newAttempt(t, []byte("video"), "accepted")

	result, err := h.orchestrator.Deliver(context.Background(), attempt)
	if err == nil || result.Status != delivery.StatusFailed {
		t.Fatalf("expected failure, got %+v, %v", result, err)
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err %v should be a configuration error", err)
	}
	if events := h.notifier.Events(); len(events) != 1 || events[0] != notifications.EventLeadFailed {
		t.Fatalf("events = %v", events)
	}
	if attempt.InFlight() {
		t.Fatal("guard should be released after Failed")
	}
}

func TestUnknownOutcomeHasNoSideEffects(t *testing.T) {
	bot, server := newBotServer(t, nil)
	h := newHarness(t, harnessOptions{serverURL: server.URL})

	_, err := h.orchestrator.Deliver(context.Background(), newAttempt(t, []byte("video"), "rejected"))
	if !errors.Is(err, delivery.ErrUnknownOutcome) {
		t.Fatalf("err = %v, want ErrUnknownOutcome", err)
	}
	if bot.hits.Load() != 0 || len(h.notifier.Events()) != 0 || len(h.journal.Entries()) != 0 {
		t.Fatal("unknown outcome should not send, notify or journal")
	}
}

type fakeShare struct {
	canShare bool
	err      error
	requests []delivery.ShareRequest
	staged   []byte
}

func (f *fakeShare) CanShare(string) bool { return f.canShare }

func (f *fakeShare) Share(_ context.Context, req delivery.ShareRequest) error {
	f.requests = append(f.requests, req)
	f.staged, _ = os.ReadFile(req.FilePath)
	return f.err
}

func TestShareModeUsesShareFacility(t *testing.T) {
	bot, server := newBotServer(t, nil)
	share := &fakeShare{canShare: true}
	h := newHarness(t, harnessOptions{serverURL: server.URL, share: share, routes: map[string]config.Route{}})

	result, err := h.orchestrator.Deliver(context.Background(), newAttempt(t, []byte("video"), ""))
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if result.Status != delivery.StatusSent || result.Channel != delivery.ChannelShare {
		t.Fatalf("unexpected result %+v", result)
	}
	if bot.hits.Load() != 0 {
		t.Fatal("bot channels should be skipped without a bot destination")
	}
	if len(share.requests) != 1 || share.requests[0].Title != "New lead" || string(share.staged) != "video" {
		t.Fatalf("share requests = %+v, staged %q", share.requests, share.staged)
	}
	if strings.Contains(share.requests[0].Text, "<b>") {
		t.Fatalf("share text should be plain: %q", share.requests[0].Text)
	}
}

func TestShareRefusalFallsBackToLocalSave(t *testing.T) {
	_, server := newBotServer(t, nil)
	share := &fakeShare{canShare: false}
	h := newHarness(t, harnessOptions{serverURL: server.URL, share: share, routes: map[string]config.Route{}})

	result, err := h.orchestrator.Deliver(context.Background(), newAttempt(t, []byte("video"), ""))
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if result.Status != delivery.StatusManual || len(share.requests) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestNoAcceptingChannel(t *testing.T) {
	_, server := newBotServer(t, nil)
	h := newHarness(t, harnessOptions{serverURL: server.URL, noFallback: true, routes: map[string]config.Route{}})

	result, err := h.orchestrator.Deliver(context.Background(), newAttempt(t, []byte("video"), ""))
	if !errors.Is(err, delivery.ErrNoChannels) || result.Status != delivery.StatusFailed {
		t.Fatalf("result = %+v, err = %v", result, err)
	}
}

func TestVideoTimeoutSkipsDocumentAndSavesLocally(t *testing.T) {
	var documents atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/sendDocument") {
			documents.Add(1)
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	h := newHarness(t, harnessOptions{
		serverURL:  server.URL,
		httpClient: &http.Client{Timeout: 50 * time.Millisecond},
	})
	result, err := h.orchestrator.Deliver(context.Background(), newAttempt(t, []byte("video"), "accepted"))
	if err != nil {
		t.Fatalf("manual result should not return an error: %v", err)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("steps = %+v", result.Steps)
	}
	if result.Steps[0].Channel != delivery.ChannelTelegramVideo || result.Steps[0].Kind != delivery.KindNetworkTimeout {
		t.Fatalf("first step = %+v", result.Steps[0])
	}
	if result.Steps[1].Channel != delivery.ChannelLocalSave {
		t.Fatalf("second step = %+v", result.Steps[1])
	}
	if documents.Load() != 0 {
		t.Fatal("document channel should not run after a timeout")
	}
	if result.Status != delivery.StatusManual || delivery.KindOf(result.Err) != delivery.KindNetworkTimeout {
		t.Fatalf("unexpected result %+v", result)
	}
	if !errors.Is(result.Err, services.ErrTimeout) {
		t.Fatalf("err %v should be a timeout", result.Err)
	}
}

func TestNewFromConfigShareModeSkipsBotRoutes(t *testing.T) {
	bot, server := newBotServer(t, nil)
	dir := t.TempDir()
	shared := filepath.Join(dir, "shared.txt")
	script := filepath.Join(dir, "share")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nprintf '%s\\n' \"$@\" > \""+shared+"\"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	cfg := testsupport.NewConfig(t,
		testsupport.WithRoute("accepted", "123:abc", "-100"),
		testsupport.WithTelegramBaseURL(server.URL),
	)
	cfg.Delivery.Mode = config.DeliveryModeShare
	cfg.Share.Command = []string{script, "{file}"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	notifier := &recordingNotifier{}
	client := telegram.NewClient(telegram.Config{BaseURL: cfg.Telegram.BaseURL})
	orchestrator := delivery.NewFromConfig(cfg, client, notifier, &memoryJournal{}, nil)

	result, err := orchestrator.Deliver(context.Background(), newAttempt(t, []byte("video"), "accepted"))
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if result.Status != delivery.StatusSent || result.Channel != delivery.ChannelShare {
		t.Fatalf("unexpected result %+v", result)
	}
	if hits := bot.hits.Load(); hits != 0 {
		t.Fatalf("bot hits = %d, want 0 in share mode", hits)
	}
	data, err := os.ReadFile(shared)
	if err != nil {
		t.Fatalf("share command did not run: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(string(data)), cfg.Paths.StagingDir) {
		t.Fatalf("shared path = %q, want a file under %s", data, cfg.Paths.StagingDir)
	}
	if events := notifier.Events(); len(events) != 1 || events[0] != notifications.EventLeadSent {
		t.Fatalf("events = %v", events)
	}
}
