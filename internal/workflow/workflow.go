// Copyright 2024 The Arcanist Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package workflow implements the arc commands as sequential state
// machines over the version control, Conduit, and console collaborators.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wangkun611/arcanist/internal/conduit"
	"github.com/wangkun611/arcanist/internal/vcs"
)

// UsageError is a fatal condition the user can correct. The command layer
// reports it as "Usage Exception: ..." and exits nonzero.
type UsageError string

func (e UsageError) Error() string { return string(e) }

// Usagef returns a UsageError with a formatted message.
func Usagef(format string, args ...any) error {
	return UsageError(fmt.Sprintf(format, args...))
}

// ErrUserAbort reports that the user declined a confirmation prompt.
// A decline is a voluntary stop, not a failure; callers exit cleanly.
var ErrUserAbort = errors.New("user aborted the workflow")

// WorkingCopy is the version control surface the workflows drive.
// *vcs.Git implements it.
type WorkingCopy interface {
	Kind() string
	CurrentBranch() (string, error)
	HasBranch(name string) bool
	Upstream(branch string) (remote, name string, ok bool)
	Checkout(branch string) error
	Pull(rebase bool) error
	PendingCommits(base, branch string) ([]vcs.Commit, error)
	PendingLog(base, branch string) (string, error)
	HeadCommit() (vcs.Commit, error)
	Push(remote, branch string) error
	Bridged() bool
	Dcommit() error
	SubmoduleUpdate() error
	Status() ([]string, error)
	Amend(message string) error
}

// Amender is the child operation that rewrites the working copy commit
// to a revision's canonical message.
type Amender interface {
	AmendCommit(ctx context.Context, revisionID int, message string) error
}

// Closer is the child operation that closes a revision after a push.
type Closer interface {
	FinalizeRevision(ctx context.Context, revisionID int) error
}

// parseRevisionArg turns "D123" or "123" into 123.
func parseRevisionArg(arg string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(arg, "D"))
	if err != nil || id <= 0 {
		return 0, Usagef("Invalid revision '%s': expected a revision ID like 'D123'.", arg)
	}
	return id, nil
}

// hashPairs converts local commits to the (type, hash) pairs
// differential.query matches on.
func hashPairs(commits []vcs.Commit) [][2]string {
	var pairs [][2]string
	for _, c := range commits {
		pairs = append(pairs,
			[2]string{conduit.HashGitCommit, c.Hash},
			[2]string{conduit.HashGitTree, c.Tree})
	}
	return pairs
}

// narrowRevisions reduces a candidate set to exactly one revision.
// A single candidate wins outright, even if its branch field is unset or
// names another branch. With several candidates, only those whose branch
// field names the target survive; anything other than exactly one left
// over is an error listing the remaining candidates.
func narrowRevisions(revs []*conduit.Revision, branch, base, kind string) (*conduit.Revision, error) {
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
		return nil, Usagef("arc can not identify which revision exists on %s '%s'. Update the revision with recent changes to synchronize the %s name and hashes, or use 'arc amend' to amend the commit message at HEAD, or use '--revision <id>' to select a revision explicitly.", kind, branch, kind)
	}
	if len(revs) > 1 {
		lines := make([]string, 0, len(revs))
		for _, r := range revs {
			lines = append(lines, "    "+r.Display())
		}
		return nil, Usagef("There are multiple revisions on feature %s '%s' which are not present on '%s':\n\n%s\n\nSeparate these revisions onto different %s, or use '--revision <id>' to select one.", kind, branch, base, strings.Join(lines, "\n"), plural(kind))
	}
	return revs[0], nil
}

func plural(kind string) string {
	if strings.HasSuffix(kind, "ch") {
		return kind + "es"
	}
	return kind + "s"
}
