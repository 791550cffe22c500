// Copyright 2024 The Arcanist Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package workflow

import (
	"context"
	"strings"

	"github.com/wangkun611/arcanist/internal/conduit"
	"github.com/wangkun611/arcanist/internal/console"
	"github.com/wangkun611/arcanist/internal/logger"
)

// Amend rewrites the HEAD commit message to a revision's canonical
// message. It also serves as the push workflow's amend child operation.
type Amend struct {
	Git     WorkingCopy
	Conduit *conduit.Client
	Console *console.Console

	Revision string // explicit revision, "D123" or "123"
	Show     bool   // print the message instead of amending
}

// Run resolves the revision for the commit at HEAD and amends it.
func (a *Amend) Run(ctx context.Context) error {
	kind := a.Git.Kind()
	branch, err := a.Git.CurrentBranch()
	if err != nil {
		return err
	}
	if branch == "HEAD" {
		return Usagef("You are in a detached HEAD state. Check out a %s before running 'arc amend'.", kind)
	}

	var rev *conduit.Revision
	if a.Revision != "" {
		id, err := parseRevisionArg(a.Revision)
		if err != nil {
			return err
		}
		revs, err := a.Conduit.QueryRevisions(ctx, conduit.RevisionQuery{IDs: []int{id}})
		if err != nil {
			return err
		}
		if len(revs) == 0 {
			return Usagef("Revision 'D%d' does not exist.", id)
		}
		rev = revs[0]
	} else {
		head, err := a.Git.HeadCommit()
		if err != nil {
			return err
		}
		revs, err := a.Conduit.QueryRevisions(ctx, conduit.RevisionQuery{
			CommitHashes: [][2]string{
				{conduit.HashGitCommit, head.Hash},
				{conduit.HashGitTree, head.Tree},
			},
		})
		if err != nil {
			return err
		}
		if len(revs) > 1 {
			var filtered []*conduit.Revision
			for _, r := range revs {
				if r.Branch == branch {
					filtered = append(filtered, r)
				}
			}
			revs = filtered
		}
		if len(revs) == 0 {
			return Usagef("Unable to find a revision for the commit at HEAD. Use '--revision <id>' to select one explicitly.")
		}
		if len(revs) > 1 {
			lines := make([]string, 0, len(revs))
			for _, r := range revs {
				lines = append(lines, "    "+r.Display())
			}
			return Usagef("More than one revision matches the commit at HEAD:\n\n%s\n\nUse '--revision <id>' to select one.", strings.Join(lines, "\n"))
		}
		rev = revs[0]
	}

	message, err := a.Conduit.GetCommitMessage(ctx, rev.ID)
	if err != nil {
		return err
	}
	if a.Show {
		a.Console.Printf("%s\n", message)
		return nil
	}

	dirty, err := a.Git.Status()
	if err != nil {
		return err
	}
	for _, line := range dirty {
		// Untracked files do not block an amend; staged or modified ones do.
		if !strings.HasPrefix(line, "??") {
			return Usagef("The working copy has uncommitted changes. Commit or stash them before amending.")
		}
	}
	if err := a.Git.Amend(message); err != nil {
		return err
	}
	a.Console.Printf("Amended commit message for revision '%s'.\n", rev.Display())
	return nil
}

// AmendCommit implements the push workflow's amend child operation. The
// canonical message is already in hand, so nothing is refetched.
func (a *Amend) AmendCommit(ctx context.Context, revisionID int, message string) error {
	logger.Debug().Int("revision", revisionID).Msg("amending commit message")
	return a.Git.Amend(message)
}
