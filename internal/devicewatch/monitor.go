package devicewatch

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"leadcast/internal/logging"
)

const subsystemVideo = "video4linux"

// Action is a hotplug action.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// Event reports a camera being plugged in or removed.
type Event struct {
	Action Action
	Device string
}

// Monitor listens for video4linux add/remove uevents.
type Monitor struct {
	logger  *slog.Logger
	handler func(ctx context.Context, event Event)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewMonitor creates a monitor that calls handler for each event.
func NewMonitor(logger *slog.Logger, handler func(ctx context.Context, event Event)) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Monitor{
		logger:  logging.NewComponentLogger(logger, "device-watch"),
		handler: handler,
	}
}

// Start connects to the netlink socket. Failure to connect is logged and
// returned so callers can fall back to polling.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "failed to connect to netlink socket", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run on Linux with access to netlink sockets"),
			logging.String(logging.FieldImpact, "camera hotplug events unavailable"),
		)
		return err
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.loop(ctx, conn, quit)

	m.logger.Info("device monitor started",
		logging.String(logging.FieldEventType, "device_monitor_started"),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("device monitor stopped",
		logging.String(logging.FieldEventType, "device_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) loop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			if event, ok := toEvent(uevent); ok {
				m.dispatch(ctx, event)
			}
		case err := <-errs:
			logging.WarnWithContext(m.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "hotplug events may be missed"),
			)
		}
	}
}

func (m *Monitor) dispatch(ctx context.Context, event Event) {
	m.logger.Info("camera "+string(event.Action),
		logging.String(logging.FieldEventType, "device_"+string(event.Action)),
		logging.String("device", event.Device),
	)
	if m.handler != nil {
		m.handler(ctx, event)
	}
}

// buildMatcher matches SUBSYSTEM=video4linux with ACTION=add|remove.
func buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": subsystemVideo,
		},
	})
	return rules
}

func toEvent(uevent netlink.UEvent) (Event, bool) {
	if uevent.Env["SUBSYSTEM"] != subsystemVideo {
		return Event{}, false
	}
	var action Action
	switch strings.ToLower(string(uevent.Action)) {
	case "add":
		action = ActionAdd
	case "remove":
		action = ActionRemove
	default:
		return Event{}, false
	}
	device := deviceName(uevent)
	if device == "" {
		return Event{}, false
	}
	return Event{Action: action, Device: device}, true
}

// deviceName gets the device path from a uevent.
func deviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/") {
			devname = "/dev/" + devname
		}
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
