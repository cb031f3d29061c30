package delivery_test

import (
	"errors"
	"testing"

	"leadcast/internal/config"
	"leadcast/internal/delivery"
)

func TestRouterIsDeterministic(t *testing.T) {
	router := delivery.NewRouter(map[string]config.Route{
		"Accepted": {Name: "sales", BotToken: "t1", ChatID: "100"},
		"callback": {BotToken: "t2", ChatID: "200"},
	}, "")

	first, err := router.Resolve("accepted")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := router.Resolve(" ACCEPTED ")
		if err != nil || again != first {
			t.Fatalf("resolution changed: %+v vs %+v (%v)", again, first, err)
		}
	}
	if first.ChatID != "100" || first.Name != "sales" {
		t.Fatalf("unexpected destination %+v", first)
	}
	callback, _ := router.Resolve("callback")
	if callback.Name != "callback" || callback.ChatID != "200" {
		t.Fatalf("route name should default to the outcome: %+v", callback)
	}
	if got := router.Outcomes(); len(got) != 2 || got[0] != "accepted" || got[1] != "callback" {
		t.Fatalf("Outcomes = %v", got)
	}
}

func TestRouterUnknownOutcome(t *testing.T) {
	router := delivery.NewRouter(map[string]config.Route{"accepted": {BotToken: "t", ChatID: "1"}}, "")
	if _, err := router.Resolve("rejected"); !errors.Is(err, delivery.ErrUnknownOutcome) {
		t.Fatalf("err = %v, want ErrUnknownOutcome", err)
	}

	withDefault := delivery.NewRouter(map[string]config.Route{"accepted": {BotToken: "t", ChatID: "1"}}, "accepted")
	dest, err := withDefault.Resolve("rejected")
	if err != nil || dest.Outcome != "accepted" {
		t.Fatalf("default route = %+v, %v", dest, err)
	}
}
