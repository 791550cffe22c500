// Copyright 2024 The Arcanist Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package console is the user-facing output and prompt surface.
//
// Workflow narrative goes to stdout through Printf and the banner
// helpers. Yes/no questions block on a Prompter, which the real console
// renders with an interactive form; tests swap in scripted answers.
package console

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// Prompter asks blocking yes/no questions.
type Prompter interface {
	Confirm(question string) (bool, error)
}

// Console writes workflow output and relays confirmation prompts.
type Console struct {
	out      io.Writer
	prompter Prompter
}

// New returns a console bound to stdout and the interactive prompter.
func New() *Console {
	return &Console{out: os.Stdout, prompter: ttyPrompter{}}
}

// NewFor returns a console writing to out and prompting through p.
func NewFor(out io.Writer, p Prompter) *Console {
	return &Console{out: out, prompter: p}
}

// Printf writes formatted workflow output.
func (c *Console) Printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// Confirm asks a yes/no question. A false result means the user declined.
func (c *Console) Confirm(format string, args ...any) (bool, error) {
	return c.prompter.Confirm(fmt.Sprintf(format, args...))
}

var (
	okayTag = color.New(color.BgGreen, color.FgBlack, color.Bold)
	warnTag = color.New(color.BgYellow, color.FgBlack, color.Bold)
	failTag = color.New(color.BgRed, color.FgWhite, color.Bold)

	statusPassed  = color.New(color.FgGreen, color.Bold)
	statusFailed  = color.New(color.FgRed, color.Bold)
	statusWorking = color.New(color.FgYellow, color.Bold)
)

// Okayf prints a green "** TAG **" banner followed by the message.
func (c *Console) Okayf(tag, format string, args ...any) {
	c.banner(okayTag, tag, format, args...)
}

// Warnf prints a yellow "** TAG **" banner followed by the message.
func (c *Console) Warnf(tag, format string, args ...any) {
	c.banner(warnTag, tag, format, args...)
}

// Failf prints a red "** TAG **" banner followed by the message.
func (c *Console) Failf(tag, format string, args ...any) {
	c.banner(failTag, tag, format, args...)
}

func (c *Console) banner(tag *color.Color, label, format string, args ...any) {
	fmt.Fprintf(c.out, "%s %s\n", tag.Sprintf("** %s **", label), fmt.Sprintf(format, args...))
}

// BuildLine prints one build run with its status colored by outcome.
func (c *Console) BuildLine(id, status, name string) {
	cl := statusWorking
	switch status {
	case "passed":
		cl = statusPassed
	case "failed":
		cl = statusFailed
	}
	fmt.Fprintf(c.out, "    Build %s: %s  %s\n", id, cl.Sprint(strings.ToUpper(status)), name)
}

// ttyPrompter renders questions as an interactive form on the terminal.
type ttyPrompter struct{}

func (ttyPrompter) Confirm(question string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, errors.New("the console is not interactive; cannot prompt for confirmation")
	}
	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(question).
			Affirmative("Yes").
			Negative("No").
			Value(&ok),
	))
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}
	return ok, nil
}
