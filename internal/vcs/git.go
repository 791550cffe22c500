// Copyright 2024 The Arcanist Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vcs wraps the version control subprocesses the workflows drive.
//
// Only git is implemented. Working copies bridged to Subversion through
// git-svn follow different publish and update rules, which Bridged exposes.
package vcs

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/wangkun611/arcanist/internal/logger"
)

// KindBranch names git's lines of development in user-facing messages.
// Bookmark-capable systems would report their own vocabulary through Kind.
const KindBranch = "branch"

// Commit is one local commit in a pending range.
type Commit struct {
	Hash    string
	Tree    string
	Subject string
}

// Git is a working copy rooted at a git repository.
type Git struct {
	root string
}

// Open locates the repository containing dir.
func Open(dir string) (*Git, error) {
	g := &Git{root: dir}
	root, err := g.output("rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("not inside a git working copy: %v", err)
	}
	g.root = root
	return g, nil
}

// Root returns the top-level working copy directory.
func (g *Git) Root() string { return g.root }

// Kind returns the naming vocabulary for this VCS.
func (g *Git) Kind() string { return KindBranch }

// CurrentBranch returns the branch HEAD is on, or "HEAD" when detached.
func (g *Git) CurrentBranch() (string, error) {
	return g.output("rev-parse", "--abbrev-ref", "HEAD")
}

// HasBranch reports whether the local branch name exists.
func (g *Git) HasBranch(name string) bool {
	return g.run("rev-parse", "--verify", "--quiet", "refs/heads/"+name) == nil
}

// Upstream resolves the remote-tracking upstream of branch.
// ok is false when the branch has no upstream or the upstream is a local
// branch rather than a remote-tracking ref.
func (g *Git) Upstream(branch string) (remote, name string, ok bool) {
	ref, err := g.output("rev-parse", "--symbolic-full-name", branch+"@{upstream}")
	if err != nil {
		return "", "", false
	}
	const prefix = "refs/remotes/"
	if !strings.HasPrefix(ref, prefix) {
		return "", "", false
	}
	rest := ref[len(prefix):]
	i := strings.Index(rest, "/")
	if i < 0 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

// Checkout makes branch the checked-out branch.
func (g *Git) Checkout(branch string) error {
	return g.run("checkout", "-q", branch)
}

// Pull updates the checked-out branch from its configured upstream.
// With rebase true local commits are replayed on top of the upstream;
// otherwise only fast-forward merges are allowed.
func (g *Git) Pull(rebase bool) error {
	if rebase {
		return g.run("pull", "-q", "--rebase")
	}
	return g.run("pull", "-q", "--ff-only")
}

// PendingCommits lists the commits in base..branch, most recent first.
func (g *Git) PendingCommits(base, branch string) ([]Commit, error) {
	lines, err := g.lines("log", "--format=%H:%T:%s", base+".."+branch)
	if err != nil {
		return nil, err
	}
	var commits []Commit
	for _, line := range lines {
		f := strings.SplitN(line, ":", 3)
		if len(f) != 3 {
			return nil, fmt.Errorf("unexpected git log output %q", line)
		}
		commits = append(commits, Commit{Hash: f[0], Tree: f[1], Subject: f[2]})
	}
	return commits, nil
}

// PendingLog returns the one-line log for base..branch.
// Empty output means there is nothing to push.
func (g *Git) PendingLog(base, branch string) (string, error) {
	return g.output("log", "--oneline", base+".."+branch)
}

// Push publishes branch to remote.
func (g *Git) Push(remote, branch string) error {
	return g.run("push", "-q", remote, branch)
}

// Bridged reports whether the working copy is a git-svn bridge.
func (g *Git) Bridged() bool {
	return g.run("rev-parse", "--verify", "--quiet", "refs/remotes/git-svn") == nil
}

// Dcommit publishes pending commits through the git-svn bridge.
func (g *Git) Dcommit() error {
	return g.run("svn", "dcommit")
}

// SubmoduleUpdate synchronizes submodule state recursively.
func (g *Git) SubmoduleUpdate() error {
	return g.run("submodule", "--quiet", "update", "--init", "--recursive")
}

// HeadCommit returns the commit at HEAD.
func (g *Git) HeadCommit() (Commit, error) {
	line, err := g.output("log", "-1", "--format=%H:%T:%s", "HEAD")
	if err != nil {
		return Commit{}, err
	}
	f := strings.SplitN(line, ":", 3)
	if len(f) != 3 {
		return Commit{}, fmt.Errorf("unexpected git log output %q", line)
	}
	return Commit{Hash: f[0], Tree: f[1], Subject: f[2]}, nil
}

// Status returns the porcelain status lines. Empty means a clean tree.
func (g *Git) Status() ([]string, error) {
	out, err := g.output("status", "--porcelain")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// Amend rewrites the HEAD commit message.
func (g *Git) Amend(message string) error {
	return g.run("commit", "--amend", "-q", "-m", message)
}

func (g *Git) run(args ...string) error {
	_, err := g.output(args...)
	return err
}

func (g *Git) output(args ...string) (string, error) {
	start := time.Now()
	cmd := exec.Command("git", args...)
	cmd.Dir = g.root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	logger.Debug().Str("cmd", "git "+strings.Join(args, " ")).Dur("elapsed", time.Since(start)).Err(err).Msg("exec")
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (g *Git) lines(args ...string) ([]string, error) {
	out, err := g.output(args...)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}
