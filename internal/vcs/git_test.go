// Copyright 2024 The Arcanist Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vcs

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// newTestRepo initializes a repository with one commit on master.
func newTestRepo(t *testing.T) *Git {
	dir := t.TempDir()
	trun(t, dir, "git", "init", "-q", "-b", "master", ".")
	trun(t, dir, "git", "config", "user.name", "gopher")
	trun(t, dir, "git", "config", "user.email", "gopher@example.com")
	write(t, filepath.Join(dir, "file"), "this is master")
	trun(t, dir, "git", "add", "file")
	trun(t, dir, "git", "commit", "-q", "-m", "initial commit")

	g, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// newSyncedRepos returns a bare origin and a clone whose master tracks
// origin/master.
func newSyncedRepos(t *testing.T) (origin string, g *Git) {
	tmp := t.TempDir()
	seed := filepath.Join(tmp, "seed")
	mkdir(t, seed)
	trun(t, seed, "git", "init", "-q", "-b", "master", ".")
	trun(t, seed, "git", "config", "user.name", "gopher")
	trun(t, seed, "git", "config", "user.email", "gopher@example.com")
	write(t, filepath.Join(seed, "file"), "this is master")
	trun(t, seed, "git", "add", "file")
	trun(t, seed, "git", "commit", "-q", "-m", "initial commit")

	origin = filepath.Join(tmp, "origin.git")
	trun(t, tmp, "git", "clone", "-q", "--bare", seed, origin)

	client := filepath.Join(tmp, "client")
	trun(t, tmp, "git", "clone", "-q", origin, client)
	trun(t, client, "git", "config", "user.name", "gopher")
	trun(t, client, "git", "config", "user.email", "gopher@example.com")

	g, err := Open(client)
	if err != nil {
		t.Fatal(err)
	}
	return origin, g
}

func commitFile(t *testing.T, g *Git, name, content, msg string) {
	write(t, filepath.Join(g.Root(), name), content)
	trun(t, g.Root(), "git", "add", name)
	trun(t, g.Root(), "git", "commit", "-q", "-m", msg)
}

func TestOpen(t *testing.T) {
	g := newTestRepo(t)
	sub := filepath.Join(g.Root(), "a", "b")
	if err := os.MkdirAll(sub, 0777); err != nil {
		t.Fatal(err)
	}
	g2, err := Open(sub)
	if err != nil {
		t.Fatal(err)
	}
	if g2.Root() != g.Root() {
		t.Errorf("Root = %q, want %q", g2.Root(), g.Root())
	}

	if _, err := Open(t.TempDir()); err == nil {
		t.Error("Open succeeded outside a repository")
	}
}

func TestCurrentBranch(t *testing.T) {
	g := newTestRepo(t)
	name, err := g.CurrentBranch()
	if err != nil || name != "master" {
		t.Fatalf("CurrentBranch = %q, %v, want master", name, err)
	}

	trun(t, g.Root(), "git", "checkout", "-q", "-b", "feature/x")
	name, err = g.CurrentBranch()
	if err != nil || name != "feature/x" {
		t.Fatalf("CurrentBranch = %q, %v, want feature/x", name, err)
	}

	trun(t, g.Root(), "git", "checkout", "-q", "--detach")
	name, err = g.CurrentBranch()
	if err != nil || name != "HEAD" {
		t.Fatalf("CurrentBranch = %q, %v, want HEAD when detached", name, err)
	}
}

func TestHasBranch(t *testing.T) {
	g := newTestRepo(t)
	if !g.HasBranch("master") {
		t.Error("HasBranch(master) = false")
	}
	if g.HasBranch("feature/x") {
		t.Error("HasBranch(feature/x) = true before creation")
	}
	trun(t, g.Root(), "git", "branch", "feature/x")
	if !g.HasBranch("feature/x") {
		t.Error("HasBranch(feature/x) = false after creation")
	}
}

func TestUpstream(t *testing.T) {
	_, g := newSyncedRepos(t)

	remote, name, ok := g.Upstream("master")
	if !ok || remote != "origin" || name != "master" {
		t.Errorf("Upstream(master) = %q, %q, %v, want origin, master, true", remote, name, ok)
	}

	trun(t, g.Root(), "git", "checkout", "-q", "-b", "feature/x")
	if _, _, ok := g.Upstream("feature/x"); ok {
		t.Error("Upstream(feature/x) = true for branch with no upstream")
	}

	// An upstream pointing at a local branch is not remote-tracking.
	trun(t, g.Root(), "git", "branch", "-q", "--track", "local-track", "master")
	if _, _, ok := g.Upstream("local-track"); ok {
		t.Error("Upstream(local-track) = true for local upstream")
	}
}

func TestPendingCommits(t *testing.T) {
	g := newTestRepo(t)
	trun(t, g.Root(), "git", "checkout", "-q", "-b", "feature/x")
	commitFile(t, g, "a", "a content", "first change")
	commitFile(t, g, "b", "b content", "fix: colons in subjects")

	commits, err := g.PendingCommits("master", "feature/x")
	if err != nil {
		t.Fatal(err)
	}
	if len(commits) != 2 {
		t.Fatalf("got %d commits, want 2", len(commits))
	}
	if commits[0].Subject != "fix: colons in subjects" || commits[1].Subject != "first change" {
		t.Errorf("subjects = %q, %q", commits[0].Subject, commits[1].Subject)
	}
	for _, c := range commits {
		if len(c.Hash) != 40 || len(c.Tree) != 40 {
			t.Errorf("commit = %+v, want full hashes", c)
		}
	}

	out, err := g.PendingLog("master", "feature/x")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "first change") || !strings.Contains(out, "fix: colons in subjects") {
		t.Errorf("PendingLog = %q", out)
	}

	out, err = g.PendingLog("feature/x", "feature/x")
	if err != nil || out != "" {
		t.Errorf("PendingLog(same, same) = %q, %v, want empty", out, err)
	}
}

func TestPush(t *testing.T) {
	origin, g := newSyncedRepos(t)
	commitFile(t, g, "new", "new content", "change to push")

	if err := g.Push("origin", "master"); err != nil {
		t.Fatal(err)
	}
	want := trun(t, g.Root(), "git", "rev-parse", "master")
	got := trun(t, origin, "git", "rev-parse", "master")
	if got != want {
		t.Errorf("origin master = %s, want %s", got, want)
	}
}

func TestPushFailure(t *testing.T) {
	_, g := newSyncedRepos(t)
	trun(t, g.Root(), "git", "remote", "set-url", "origin", filepath.Join(t.TempDir(), "nonexistent"))
	commitFile(t, g, "new", "new content", "change to push")

	err := g.Push("origin", "master")
	if err == nil || !strings.Contains(err.Error(), "git push") {
		t.Errorf("Push error = %v, want git push failure", err)
	}
}

func TestPull(t *testing.T) {
	origin, g := newSyncedRepos(t)

	// Advance origin through a second clone.
	tmp := t.TempDir()
	other := filepath.Join(tmp, "other")
	trun(t, tmp, "git", "clone", "-q", origin, other)
	trun(t, other, "git", "config", "user.name", "gopher")
	trun(t, other, "git", "config", "user.email", "gopher@example.com")
	write(t, filepath.Join(other, "file"), "advanced")
	trun(t, other, "git", "add", "file")
	trun(t, other, "git", "commit", "-q", "-m", "advance")
	trun(t, other, "git", "push", "-q", "origin", "master")

	trun(t, g.Root(), "git", "fetch", "-q", "origin")
	if err := g.Pull(false); err != nil {
		t.Fatal(err)
	}
	want := trun(t, origin, "git", "rev-parse", "master")
	got := trun(t, g.Root(), "git", "rev-parse", "master")
	if got != want {
		t.Errorf("after ff-only pull, master = %s, want %s", got, want)
	}
}

func TestPullRebase(t *testing.T) {
	origin, g := newSyncedRepos(t)

	tmp := t.TempDir()
	other := filepath.Join(tmp, "other")
	trun(t, tmp, "git", "clone", "-q", origin, other)
	trun(t, other, "git", "config", "user.name", "gopher")
	trun(t, other, "git", "config", "user.email", "gopher@example.com")
	write(t, filepath.Join(other, "upstream-file"), "upstream")
	trun(t, other, "git", "add", "upstream-file")
	trun(t, other, "git", "commit", "-q", "-m", "upstream change")
	trun(t, other, "git", "push", "-q", "origin", "master")

	commitFile(t, g, "local-file", "local", "local change")

	// Diverged: a fast-forward-only pull must fail, a rebase pull must
	// replay the local commit on top.
	if err := g.Pull(false); err == nil {
		t.Error("ff-only pull succeeded on diverged branch")
	}
	if err := g.Pull(true); err != nil {
		t.Fatal(err)
	}
	out := trun(t, g.Root(), "git", "log", "--format=%s", "-2")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || lines[0] != "local change" || lines[1] != "upstream change" {
		t.Errorf("log after rebase = %q", lines)
	}
}

func TestBridged(t *testing.T) {
	g := newTestRepo(t)
	if g.Bridged() {
		t.Error("Bridged = true for plain repository")
	}
	trun(t, g.Root(), "git", "update-ref", "refs/remotes/git-svn", "HEAD")
	if !g.Bridged() {
		t.Error("Bridged = false with refs/remotes/git-svn present")
	}
}

func TestStatus(t *testing.T) {
	g := newTestRepo(t)
	lines, err := g.Status()
	if err != nil || lines != nil {
		t.Fatalf("Status = %v, %v, want clean", lines, err)
	}
	write(t, filepath.Join(g.Root(), "untracked"), "data")
	lines, err = g.Status()
	if err != nil || len(lines) != 1 {
		t.Fatalf("Status = %v, %v, want one line", lines, err)
	}
}

func TestAmend(t *testing.T) {
	g := newTestRepo(t)
	commitFile(t, g, "a", "a content", "original subject")

	if err := g.Amend("amended subject\n\nbody line\n\nDifferential Revision: https://phab.example.com/D100"); err != nil {
		t.Fatal(err)
	}
	subject := trun(t, g.Root(), "git", "log", "-1", "--format=%s")
	if subject != "amended subject" {
		t.Errorf("subject = %q", subject)
	}
	body := trun(t, g.Root(), "git", "log", "-1", "--format=%B")
	if !strings.Contains(body, "Differential Revision:") {
		t.Errorf("body = %q", body)
	}
}

func mkdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Mkdir(dir, 0777); err != nil {
		t.Fatal(err)
	}
}

func write(t *testing.T, file, data string) {
	t.Helper()
	if err := os.WriteFile(file, []byte(data), 0666); err != nil {
		t.Fatal(err)
	}
}

func trun(t *testing.T, dir string, cmdline ...string) string {
	t.Helper()
	cmd := exec.Command(cmdline[0], cmdline[1:]...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("in %s/, ran %s: %v\n%s", filepath.Base(dir), cmdline, err, out)
	}
	return strings.TrimSpace(string(out))
}
