// Copyright 2024 The Arcanist Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package workflow

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/wangkun611/arcanist/internal/conduit"
)

func TestAmend(t *testing.T) {
	pt := newPushTest(t)
	pt.gt.work(t)
	trun(t, pt.gt.dir(), "git", "checkout", "-q", "feature/x")
	pt.fake.reply("differential.query/hashes", revResult(acceptedRev()))
	pt.fake.reply("differential.getcommitmessage", strconv.Quote(canonicalMessage))

	if err := pt.newAmend().Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	testPrinted(t, pt.out, "Amended commit message for revision 'D100: Add widget cache'.")
	testCalled(t, pt.fake, "differential.query", "differential.getcommitmessage")

	message := trun(t, pt.gt.dir(), "git", "log", "-1", "--format=%B")
	if message != canonicalMessage {
		t.Errorf("commit message = %q, want canonical message", message)
	}
	hashes, _ := pt.fake.firstParams("differential.query")["commitHashes"].([]any)
	if len(hashes) != 2 {
		t.Errorf("commitHashes = %v, want one commit and one tree pair", hashes)
	}
}

func TestAmendShow(t *testing.T) {
	pt := newPushTest(t)
	pt.gt.work(t)
	trun(t, pt.gt.dir(), "git", "checkout", "-q", "feature/x")
	pt.fake.reply("differential.query/hashes", revResult(acceptedRev()))
	pt.fake.reply("differential.getcommitmessage", strconv.Quote(canonicalMessage))

	a := pt.newAmend()
	a.Show = true
	if err := a.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	testPrinted(t, pt.out, canonicalMessage, "!Amended commit message")

	// Show never rewrites the commit.
	subject := trun(t, pt.gt.dir(), "git", "log", "-1", "--format=%s")
	if subject != "widget cache: add lookup" {
		t.Errorf("subject = %q, want the local message kept", subject)
	}
}

func TestAmendExplicitRevision(t *testing.T) {
	pt := newPushTest(t)
	pt.gt.work(t)
	trun(t, pt.gt.dir(), "git", "checkout", "-q", "feature/x")
	pt.fake.reply("differential.query/ids", revResult(acceptedRev()))
	pt.fake.reply("differential.getcommitmessage", strconv.Quote(canonicalMessage))

	a := pt.newAmend()
	a.Revision = "D100"
	if err := a.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ids, _ := pt.fake.firstParams("differential.query")["ids"].([]any); len(ids) != 1 || ids[0] != float64(100) {
		t.Errorf("ids param = %v, want [100]", ids)
	}
	message := trun(t, pt.gt.dir(), "git", "log", "-1", "--format=%B")
	if message != canonicalMessage {
		t.Errorf("commit message = %q, want canonical message", message)
	}
}

func TestAmendExplicitRevisionMissing(t *testing.T) {
	pt := newPushTest(t)
	pt.gt.work(t)
	trun(t, pt.gt.dir(), "git", "checkout", "-q", "feature/x")
	pt.fake.reply("differential.query/ids", "[]")

	a := pt.newAmend()
	a.Revision = "999"
	err := a.Run(context.Background())
	isUsageError(t, err, "Revision 'D999' does not exist.")
}

func TestAmendNoRevisionForHead(t *testing.T) {
	pt := newPushTest(t)
	pt.gt.work(t)
	trun(t, pt.gt.dir(), "git", "checkout", "-q", "feature/x")
	pt.fake.reply("differential.query/hashes", "[]")

	err := pt.newAmend().Run(context.Background())
	isUsageError(t, err, "Unable to find a revision for the commit at HEAD.")
}

func TestAmendFiltersCandidatesByBranch(t *testing.T) {
	pt := newPushTest(t)
	pt.gt.work(t)
	trun(t, pt.gt.dir(), "git", "checkout", "-q", "feature/x")
	other := revSpec{
		id:     101,
		title:  "Tweak gadget flags",
		status: conduit.StatusAccepted,
		author: "PHID-USER-1",
		branch: "feature/z",
	}
	pt.fake.reply("differential.query/hashes", revResult(acceptedRev(), other))
	pt.fake.reply("differential.getcommitmessage", strconv.Quote(canonicalMessage))

	if err := pt.newAmend().Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if id := pt.fake.lastParams("differential.getcommitmessage")["revision_id"]; id != float64(100) {
		t.Errorf("fetched message for revision %v, want 100", id)
	}
}

func TestAmendMultipleMatches(t *testing.T) {
	pt := newPushTest(t)
	pt.gt.work(t)
	trun(t, pt.gt.dir(), "git", "checkout", "-q", "feature/x")
	second := revSpec{
		id:     101,
		title:  "Tweak gadget flags",
		status: conduit.StatusAccepted,
		author: "PHID-USER-1",
		branch: "feature/x",
	}
	pt.fake.reply("differential.query/hashes", revResult(acceptedRev(), second))

	err := pt.newAmend().Run(context.Background())
	isUsageError(t, err, "More than one revision matches the commit at HEAD:")
	for _, line := range []string{"D100: Add widget cache", "D101: Tweak gadget flags"} {
		if !strings.Contains(err.Error(), line) {
			t.Errorf("error %q missing %q", err, line)
		}
	}
}

func TestAmendDirtyWorkingCopy(t *testing.T) {
	pt := newPushTest(t)
	pt.gt.work(t)
	trun(t, pt.gt.dir(), "git", "checkout", "-q", "feature/x")
	pt.fake.reply("differential.query/hashes", revResult(acceptedRev()))
	pt.fake.reply("differential.getcommitmessage", strconv.Quote(canonicalMessage))
	write(t, filepath.Join(pt.gt.dir(), "file"), "modified content")

	err := pt.newAmend().Run(context.Background())
	isUsageError(t, err, "The working copy has uncommitted changes.")
	subject := trun(t, pt.gt.dir(), "git", "log", "-1", "--format=%s")
	if subject != "widget cache: add lookup" {
		t.Errorf("subject = %q, want the local message kept", subject)
	}
}

func TestAmendIgnoresUntrackedFiles(t *testing.T) {
	pt := newPushTest(t)
	pt.gt.work(t)
	trun(t, pt.gt.dir(), "git", "checkout", "-q", "feature/x")
	pt.fake.reply("differential.query/hashes", revResult(acceptedRev()))
	pt.fake.reply("differential.getcommitmessage", strconv.Quote(canonicalMessage))
	write(t, filepath.Join(pt.gt.dir(), "scratch"), "notes")

	if err := pt.newAmend().Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	testPrinted(t, pt.out, "Amended commit message for revision 'D100: Add widget cache'.")
}

func TestAmendDetachedHead(t *testing.T) {
	pt := newPushTest(t)
	trun(t, pt.gt.dir(), "git", "checkout", "-q", "--detach")

	err := pt.newAmend().Run(context.Background())
	isUsageError(t, err, "detached HEAD")
	testCalled(t, pt.fake)
}
