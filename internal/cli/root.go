// Copyright 2024 The Arcanist Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cli declares the arc command tree. Each command binds its flags
// to one of the workflows in internal/workflow and wires up the working
// copy, Conduit client, and console collaborators.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wangkun611/arcanist/internal/conduit"
	"github.com/wangkun611/arcanist/internal/config"
	"github.com/wangkun611/arcanist/internal/console"
	"github.com/wangkun611/arcanist/internal/logger"
	"github.com/wangkun611/arcanist/internal/vcs"
	"github.com/wangkun611/arcanist/internal/workflow"
)

var (
	traceFlag      bool
	conduitURIFlag string
)

var rootCmd = &cobra.Command{
	Use:   "arc",
	Short: "arc is a command-line client for the Phabricator code review system",
	Long: `arc is a command-line client for the Phabricator code review system.

It publishes reviewed branches, synchronizes commit messages with their
revisions, closes revisions, and files quick tracking tasks. Project
settings come from the .arcconfig file at the repository root; API
credentials come from ~/.arcrc.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(os.Stderr, traceFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&traceFlag, "trace", false, "log every subprocess and API call to stderr")
	rootCmd.PersistentFlags().StringVar(&conduitURIFlag, "conduit-uri", "", "call the API at this URI instead of the configured one")
}

// Main runs the arc command line and returns the process exit code.
func Main(args []string) int {
	rootCmd.SetArgs(args)
	return report(rootCmd.ExecuteContext(context.Background()), os.Stderr)
}

// report prints err the way arc presents failures and converts it to an
// exit code. A declined confirmation is a voluntary stop, not a failure,
// so it exits zero and prints nothing.
func report(err error, stderr io.Writer) int {
	if err == nil || errors.Is(err, workflow.ErrUserAbort) {
		return 0
	}
	var usage workflow.UsageError
	if errors.As(err, &usage) {
		fmt.Fprintf(stderr, "Usage Exception: %s\n", string(usage))
		return 1
	}
	fmt.Fprintf(stderr, "Exception: %v\n", err)
	return 1
}

// env holds the collaborators the workflows run against.
type env struct {
	cfg     *config.Config
	conduit *conduit.Client
	console *console.Console
	git     *vcs.Git
}

// openEnv loads configuration and connects the Conduit client.
func openEnv() (*env, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, workflow.UsageError(err.Error())
	}
	uri := conduitURIFlag
	if uri == "" {
		uri = cfg.ConduitURI()
	}
	if uri == "" {
		return nil, workflow.Usagef("No Conduit URI is configured. Set \"phabricator.uri\" in .arcconfig or pass --conduit-uri.")
	}
	return &env{
		cfg:     cfg,
		conduit: conduit.NewClient(uri, cfg.Token(uri)),
		console: console.New(),
	}, nil
}

// openRepoEnv is openEnv plus the enclosing git working copy.
func openRepoEnv() (*env, error) {
	e, err := openEnv()
	if err != nil {
		return nil, err
	}
	g, err := vcs.Open(".")
	if err != nil {
		return nil, workflow.UsageError(err.Error())
	}
	e.git = g
	return e, nil
}
