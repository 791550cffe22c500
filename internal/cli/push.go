// Copyright 2024 The Arcanist Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"github.com/spf13/cobra"

	"github.com/wangkun611/arcanist/internal/workflow"
)

var (
	pushRevision string
	pushRemote   string
	pushFrom     string
	pushPreview  bool
	pushNoAmend  bool
	pushRebase   bool
	pushMerge    bool
)

var pushCmd = &cobra.Command{
	Use:   "push [branch]",
	Short: "Publish a reviewed branch to the remote",
	Long: `Publish a reviewed branch to the remote.

Updates the branch against its upstream, matches the pending commits to
exactly one revision, checks review and build state, rewrites the local
commit message to the revision's canonical message, pushes, and closes
the revision. Without a branch argument the currently checked-out branch
is pushed. If anything fails after the working copy has been touched,
the branch that was checked out before the push is restored.`,
	Args: branchArgs,
	RunE: runPush,
}

func init() {
	rootCmd.AddCommand(pushCmd)

	pushCmd.Flags().StringVar(&pushRevision, "revision", "", "push this revision, like D123, instead of matching by commit")
	pushCmd.Flags().StringVar(&pushRemote, "remote", "", "push to this remote instead of origin")
	pushCmd.Flags().StringVar(&pushFrom, "from", "", "update against <remote>/<from> when the branch has no upstream")
	pushCmd.Flags().BoolVar(&pushPreview, "preview", false, "list the commits that would be pushed, then stop")
	pushCmd.Flags().BoolVar(&pushNoAmend, "no-amend", false, "keep the local commit message instead of the revision's")
	pushCmd.Flags().BoolVar(&pushRebase, "update-with-rebase", false, "update the branch by rebasing onto its upstream (default)")
	pushCmd.Flags().BoolVar(&pushMerge, "update-with-merge", false, "update the branch with a fast-forward merge")
	pushCmd.MarkFlagsMutuallyExclusive("update-with-rebase", "update-with-merge")
}

// branchArgs accepts at most one positional branch name.
func branchArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 1 {
		return workflow.Usagef("Specify exactly one branch to push, like 'arc push feature1'.")
	}
	return nil
}

func runPush(cmd *cobra.Command, args []string) error {
	e, err := openRepoEnv()
	if err != nil {
		return err
	}
	p := &workflow.Push{
		Git:      e.git,
		Conduit:  e.conduit,
		Console:  e.console,
		Config:   e.cfg,
		Amender:  &workflow.Amend{Git: e.git, Conduit: e.conduit, Console: e.console},
		Closer:   &workflow.CloseRevision{Conduit: e.conduit, Console: e.console},
		Revision: pushRevision,
		Remote:   pushRemote,
		From:     pushFrom,
		Preview:  pushPreview,
		NoAmend:  pushNoAmend,
		Merge:    pushMerge,
	}
	if len(args) == 1 {
		p.Branch = args[0]
	}
	return p.Run(cmd.Context())
}
