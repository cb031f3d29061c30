package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"leadcast/internal/delivery"
)

func TestFlagName(t *testing.T) {
	tests := map[string]string{
		delivery.FieldParentName: "parent-name",
		delivery.FieldChildName:  "child-name",
		delivery.FieldAge:        "age",
	}
	for key, want := range tests {
		if got := flagName(key); got != want {
			t.Fatalf("flagName(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestPrompterChoose(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(context.Background(), strings.NewReader("nope\n2\n\nREJECTED\n"), &out)
	options := []string{"accepted", "rejected"}

	got, err := p.choose("Outcome: ", options, "accepted")
	if err != nil || got != "rejected" {
		t.Fatalf("choose by number = %q, %v", got, err)
	}
	requireContains(t, out.String(), `Unknown choice "nope"`)

	if got, _ := p.choose("Outcome: ", options, "accepted"); got != "accepted" {
		t.Fatalf("empty answer = %q, want default", got)
	}
	if got, _ := p.choose("Outcome: ", options, ""); got != "rejected" {
		t.Fatalf("choose by name = %q", got)
	}
	if _, err := p.ask("More: "); !errors.Is(err, errQuit) {
		t.Fatalf("end of input err = %v, want errQuit", err)
	}
}

func TestPrompterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader, writer := io.Pipe()
	defer writer.Close()
	p := newPrompter(ctx, reader, &bytes.Buffer{})
	cancel()
	if _, err := p.ask("Name: "); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestLeadFlagsCollect(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	flags := bindLeadFlags(cmd)
	if err := cmd.Flags().Parse([]string{"--parent-name", "Maria", "--phone", "+7 700"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	p := newPrompter(context.Background(), strings.NewReader("Anna\n\nAlex\n"), &bytes.Buffer{})
	record, err := flags.collect(p, true)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	want := []delivery.Field{
		{Key: delivery.FieldParentName, Value: "Maria"},
		{Key: delivery.FieldChildName, Value: "Anna"},
		{Key: delivery.FieldPhone, Value: "+7 700"},
		{Key: delivery.FieldPromoter, Value: "Alex"},
	}
	if len(record) != len(want) {
		t.Fatalf("record = %+v", record)
	}
	for i := range want {
		if record[i] != want[i] {
			t.Fatalf("field %d = %+v, want %+v", i, record[i], want[i])
		}
	}
}
