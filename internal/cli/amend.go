// Copyright 2024 The Arcanist Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"github.com/spf13/cobra"

	"github.com/wangkun611/arcanist/internal/workflow"
)

var (
	amendRevision string
	amendShow     bool
)

var amendCmd = &cobra.Command{
	Use:   "amend",
	Short: "Synchronize the HEAD commit message with its revision",
	Long: `Synchronize the HEAD commit message with its revision.

Finds the revision that matches the commit at HEAD and rewrites the
commit message to the revision's canonical message, as rendered by the
remote install. With --show the message is printed instead.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return workflow.Usagef("'arc amend' takes no arguments. Use '--revision <id>' to select a revision.")
		}
		return nil
	},
	RunE: runAmend,
}

func init() {
	rootCmd.AddCommand(amendCmd)

	amendCmd.Flags().StringVar(&amendRevision, "revision", "", "use this revision, like D123, instead of matching by commit")
	amendCmd.Flags().BoolVar(&amendShow, "show", false, "print the canonical message instead of amending")
}

func runAmend(cmd *cobra.Command, args []string) error {
	e, err := openRepoEnv()
	if err != nil {
		return err
	}
	a := &workflow.Amend{
		Git:      e.git,
		Conduit:  e.conduit,
		Console:  e.console,
		Revision: amendRevision,
		Show:     amendShow,
	}
	return a.Run(cmd.Context())
}
