package delivery

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"leadcast/internal/config"
)

// Destination is where a bot channel delivers.
type Destination struct {
	Outcome  string
	Name     string
	BotToken string
	ChatID   string
}

// HasBot reports whether bot channels can address this destination.
func (d Destination) HasBot() bool {
	return d.BotToken != "" && d.ChatID != ""
}

// LogValue keeps bot tokens out of logs.
func (d Destination) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("outcome", d.Outcome),
		slog.String("name", d.Name),
		slog.String("chat_id", d.ChatID),
		slog.Bool("bot", d.BotToken != ""),
	)
}

// Router maps outcome tags to destinations.
type Router struct {
	routes         map[string]Destination
	defaultOutcome string
}

// NewRouter builds a router from configured routes. defaultOutcome may be
// empty.
func NewRouter(routes map[string]config.Route, defaultOutcome string) *Router {
	r := &Router{
		routes:         make(map[string]Destination, len(routes)),
		defaultOutcome: normalizeOutcome(defaultOutcome),
	}
	for outcome, route := range routes {
		key := normalizeOutcome(outcome)
		if key == "" {
			continue
		}
		name := strings.TrimSpace(route.Name)
		if name == "" {
			name = key
		}
		r.routes[key] = Destination{
			Outcome:  key,
			Name:     name,
			BotToken: strings.TrimSpace(route.BotToken),
			ChatID:   strings.TrimSpace(route.ChatID),
		}
	}
	return r
}

// RouterFromConfig builds the router from [routes] and delivery.default_outcome.
func RouterFromConfig(cfg *config.Config) *Router {
	return NewRouter(cfg.Routes, cfg.Delivery.DefaultOutcome)
}

// Resolve returns the destination for outcome. An empty or unknown outcome
// falls back to the default route when one is configured.
func (r *Router) Resolve(outcome string) (Destination, error) {
	key := normalizeOutcome(outcome)
	if dest, ok := r.routes[key]; ok {
		return dest, nil
	}
	if dest, ok := r.routes[r.defaultOutcome]; ok && r.defaultOutcome != "" {
		return dest, nil
	}
	return Destination{}, fmt.Errorf("%w: %q", ErrUnknownOutcome, outcome)
}

// Outcomes lists the routed outcome tags in sorted order.
func (r *Router) Outcomes() []string {
	out := make([]string, 0, len(r.routes))
	for key := range r.routes {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Empty reports whether no routes are configured.
func (r *Router) Empty() bool {
	return len(r.routes) == 0
}

func normalizeOutcome(outcome string) string {
	return strings.ToLower(strings.TrimSpace(outcome))
}
