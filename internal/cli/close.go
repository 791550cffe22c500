// Copyright 2024 The Arcanist Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"github.com/spf13/cobra"

	"github.com/wangkun611/arcanist/internal/workflow"
)

var (
	closeFinalize bool
	closeQuiet    bool
)

var closeCmd = &cobra.Command{
	Use:   "close-revision <revision>",
	Short: "Close a revision on the remote install",
	Long: `Close a revision on the remote install.

With --finalize the revision is closed only if it has been accepted;
anything else is left alone for the commit daemon to pick up.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return workflow.Usagef("Specify one revision to close, like 'arc close-revision D123'.")
		}
		return nil
	},
	RunE: runCloseRevision,
}

func init() {
	rootCmd.AddCommand(closeCmd)

	closeCmd.Flags().BoolVar(&closeFinalize, "finalize", false, "close the revision only if it has been accepted")
	closeCmd.Flags().BoolVar(&closeQuiet, "quiet", false, "do not print anything on success")
}

func runCloseRevision(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	c := &workflow.CloseRevision{
		Conduit:  e.conduit,
		Console:  e.console,
		Revision: args[0],
		Finalize: closeFinalize,
		Quiet:    closeQuiet,
	}
	return c.Run(cmd.Context())
}
