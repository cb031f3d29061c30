package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"leadcast/internal/delivery"
)

// errQuit is returned when the operator ends the session.
var errQuit = errors.New("quit")

type promptLine struct {
	text string
	err  error
}

// prompter reads operator input line by line. Reads happen on a background
// goroutine so a cancelled context unblocks ask.
type prompter struct {
	ctx   context.Context
	out   io.Writer
	lines chan promptLine
}

func newPrompter(ctx context.Context, in io.Reader, out io.Writer) *prompter {
	p := &prompter{ctx: ctx, out: out, lines: make(chan promptLine)}
	go p.read(bufio.NewReader(in))
	return p
}

func (p *prompter) read(in *bufio.Reader) {
	for {
		line, err := in.ReadString('\n')
		if err != nil && errors.Is(err, io.EOF) && line != "" {
			err = nil
		}
		select {
		case p.lines <- promptLine{text: line, err: err}:
		case <-p.ctx.Done():
			return
		}
		if err != nil {
			close(p.lines)
			return
		}
	}
}

// ask prints label and returns the trimmed line typed by the operator. End
// of input reads as errQuit.
func (p *prompter) ask(label string) (string, error) {
	fmt.Fprint(p.out, label)
	select {
	case <-p.ctx.Done():
		fmt.Fprintln(p.out)
		return "", p.ctx.Err()
	case line, ok := <-p.lines:
		if !ok || errors.Is(line.err, io.EOF) {
			return "", errQuit
		}
		if line.err != nil {
			return "", line.err
		}
		return strings.TrimSpace(line.text), nil
	}
}

// choose asks for one of options by number or name. An empty answer picks
// def when def is set.
func (p *prompter) choose(label string, options []string, def string) (string, error) {
	if len(options) == 0 {
		return def, nil
	}
	for i, option := range options {
		marker := ""
		if option == def {
			marker = " (default)"
		}
		fmt.Fprintf(p.out, "  %d) %s%s\n", i+1, option, marker)
	}
	for {
		answer, err := p.ask(label)
		if err != nil {
			return "", err
		}
		if answer == "" && def != "" {
			return def, nil
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(options) {
			return options[n-1], nil
		}
		for _, option := range options {
			if strings.EqualFold(option, answer) {
				return option, nil
			}
		}
		fmt.Fprintf(p.out, "Unknown choice %q\n", answer)
	}
}

// leadFlags holds the record fields passed on the command line.
type leadFlags struct {
	values map[string]*string
}

func bindLeadFlags(cmd *cobra.Command) *leadFlags {
	flags := &leadFlags{values: make(map[string]*string, len(delivery.LeadFields))}
	for _, key := range delivery.LeadFields {
		value := new(string)
		flags.values[key] = value
		cmd.Flags().StringVar(value, flagName(key), "", fmt.Sprintf("%s of the lead", delivery.Field{Key: key}.Label()))
	}
	return flags
}

// record builds a record from the flags alone. Blank fields are omitted.
func (f *leadFlags) record() delivery.Record {
	var record delivery.Record
	for _, key := range delivery.LeadFields {
		if value := strings.TrimSpace(*f.values[key]); value != "" {
			record = append(record, delivery.Field{Key: key, Value: value})
		}
	}
	return record
}

// collect prompts for every field not given on the command line. Blank
// answers leave the field out of the record.
func (f *leadFlags) collect(p *prompter, useFlags bool) (delivery.Record, error) {
	var record delivery.Record
	for _, key := range delivery.LeadFields {
		value := ""
		if useFlags {
			value = strings.TrimSpace(*f.values[key])
		}
		if value == "" {
			answer, err := p.ask(delivery.Field{Key: key}.Label() + ": ")
			if err != nil {
				return nil, err
			}
			value = answer
		}
		if value != "" {
			record = append(record, delivery.Field{Key: key, Value: value})
		}
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}
	return record, nil
}

// flagName turns a record key such as parentName into parent-name.
func flagName(key string) string {
	var b strings.Builder
	for i, r := range key {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
