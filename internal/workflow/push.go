// Copyright 2024 The Arcanist Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/wangkun611/arcanist/internal/conduit"
	"github.com/wangkun611/arcanist/internal/config"
	"github.com/wangkun611/arcanist/internal/console"
	"github.com/wangkun611/arcanist/internal/logger"
)

// Push publishes a reviewed branch. It synchronizes the working copy
// with its upstream, matches the pending commits to exactly one
// revision, gates on review and build state, amends the commit to the
// canonical review message, pushes, and closes the revision. On any
// failure or decline after the working copy has been touched, the
// previously checked-out branch is restored.
type Push struct {
	Git     WorkingCopy
	Conduit *conduit.Client
	Console *console.Console
	Config  *config.Config
	Amender Amender
	Closer  Closer

	Branch   string // positional argument; empty selects the checked-out branch
	Revision string // explicit revision, "D123" or "123"
	Remote   string // --remote; empty means origin
	From     string // --from; overrides the configured source branch
	Preview  bool   // stop after listing pending commits
	NoAmend  bool   // skip the amend step
	Merge    bool   // update with a fast-forward merge instead of rebase

	kind        string
	prior       string
	remote      string
	base        string
	hasUpstream bool
	rev         *conduit.Revision
	message     string
}

// Run executes the push workflow.
func (p *Push) Run(ctx context.Context) error {
	if err := p.resolveBranch(); err != nil {
		return err
	}
	p.resolveUpstream()

	if err := p.update(); err != nil {
		p.restore()
		return err
	}
	if err := p.printPending(); err != nil {
		p.restore()
		return err
	}
	if p.Preview {
		p.restore()
		return nil
	}
	if err := p.resolveRevision(ctx); err != nil {
		p.restore()
		return err
	}
	if err := p.checkBuilds(ctx); err != nil {
		p.restore()
		return err
	}
	if err := p.publish(ctx); err != nil {
		p.restore()
		return err
	}
	p.notify(ctx)
	if err := p.finalize(ctx); err != nil {
		p.restore()
		return err
	}
	p.Console.Printf("Done. Pushed changes.\n")
	if p.prior != p.Branch {
		p.restore()
	}
	return nil
}

// resolveBranch picks the target branch and records the branch to
// restore afterwards. It performs no working copy mutation.
func (p *Push) resolveBranch() error {
	p.kind = p.Git.Kind()
	cur, err := p.Git.CurrentBranch()
	if err != nil {
		return err
	}
	if cur == "HEAD" {
		return Usagef("You are in a detached HEAD state. Check out a %s before running 'arc push'.", p.kind)
	}
	p.prior = cur
	if p.Branch == "" {
		p.Branch = cur
	} else if !p.Git.HasBranch(p.Branch) {
		return Usagef("No %s named '%s' exists in this working copy.", p.kind, p.Branch)
	}
	return nil
}

// resolveUpstream determines the remote and base reference. A
// remote-tracking upstream supplies both; otherwise the remote falls
// back to the --remote flag or origin, and the base branch to --from,
// the configured arc.push.from.default, or HEAD.
func (p *Push) resolveUpstream() {
	if remote, name, ok := p.Git.Upstream(p.Branch); ok {
		p.remote = remote
		p.base = remote + "/" + name
		p.hasUpstream = true
		return
	}
	p.remote = p.Remote
	if p.remote == "" {
		p.remote = "origin"
	}
	from := p.From
	if from == "" {
		from = p.Config.Get("arc.push.from.default")
	}
	if from == "" {
		from = "HEAD"
	}
	p.base = p.remote + "/" + from
}

// update checks out the target branch and brings it up to date with its
// upstream. Pull failures in bridged working copies are ignored because
// the bridge's remote refs do not behave like native ones.
func (p *Push) update() error {
	if err := p.Git.Checkout(p.Branch); err != nil {
		return err
	}
	if p.prior != p.Branch {
		p.Console.Printf("Switched to %s '%s'.\n", p.kind, p.Branch)
	}
	if !p.hasUpstream {
		return nil
	}
	p.Console.Printf("Updating %s '%s'...\n", p.kind, p.Branch)
	if err := p.Git.Pull(!p.Merge); err != nil {
		if p.Git.Bridged() {
			logger.Debug().Err(err).Msg("ignoring pull failure in bridged working copy")
			return nil
		}
		return err
	}
	return nil
}

func (p *Push) printPending() error {
	out, err := p.Git.PendingLog(p.base, p.Branch)
	if err != nil {
		return err
	}
	if out == "" {
		return Usagef("No commits to push from %s '%s' to '%s'.", p.kind, p.Branch, p.base)
	}
	p.Console.Printf("The following commit(s) will be pushed:\n\n%s\n\n", out)
	return nil
}

// resolveRevision binds exactly one revision to the pending commits and
// walks the author, acceptance, and dependency gates.
func (p *Push) resolveRevision(ctx context.Context) error {
	var rev *conduit.Revision
	if p.Revision != "" {
		id, err := parseRevisionArg(p.Revision)
		if err != nil {
			return err
		}
		revs, err := p.Conduit.QueryRevisions(ctx, conduit.RevisionQuery{IDs: []int{id}})
		if err != nil {
			return err
		}
		if len(revs) == 0 {
			return Usagef("Revision 'D%d' does not exist.", id)
		}
		rev = revs[0]
	} else {
		commits, err := p.Git.PendingCommits(p.base, p.Branch)
		if err != nil {
			return err
		}
		var revs []*conduit.Revision
		if pairs := hashPairs(commits); len(pairs) > 0 {
			revs, err = p.Conduit.QueryRevisions(ctx, conduit.RevisionQuery{CommitHashes: pairs})
			if err != nil {
				return err
			}
		}
		rev, err = narrowRevisions(revs, p.Branch, p.base, p.kind)
		if err != nil {
			return err
		}
	}

	me, err := p.Conduit.WhoAmI(ctx)
	if err != nil {
		return err
	}
	if rev.AuthorPHID != me.PHID {
		author := rev.AuthorPHID
		if users, err := p.Conduit.QueryUsers(ctx, nil, []string{rev.AuthorPHID}); err == nil && len(users) > 0 {
			author = users[0].UserName
		}
		if err := p.confirm("This %s has revision '%s' but you are not the author. Push this revision by %s?", p.kind, rev.Display(), author); err != nil {
			return err
		}
	}
	if !rev.Accepted() {
		if err := p.confirm("Revision '%s' has not been accepted. Continue anyway?", rev.Display()); err != nil {
			return err
		}
	}
	if len(rev.Dependencies) > 0 {
		open, err := p.Conduit.QueryRevisions(ctx, conduit.RevisionQuery{PHIDs: rev.Dependencies, Status: "status-open"})
		if err != nil {
			return err
		}
		if len(open) > 0 {
			p.Console.Printf("Revision '%s' depends on open revisions:\n\n", rev.Display())
			for _, dep := range open {
				p.Console.Printf("    %s\n", dep.Display())
			}
			p.Console.Printf("\n")
			if err := p.confirm("Continue anyway?"); err != nil {
				return err
			}
		}
	}

	message, err := p.Conduit.GetCommitMessage(ctx, rev.ID)
	if err != nil {
		return err
	}
	p.rev = rev
	p.message = message
	return nil
}

// checkBuilds reports the build state of the revision's active diff.
// The check is advisory: transport failures and installs without a build
// system never block the push.
func (p *Push) checkBuilds(ctx context.Context) error {
	if p.rev.ActiveDiffPHID == "" {
		return nil
	}
	buildables, err := p.Conduit.QueryBuildables(ctx, []string{p.rev.ActiveDiffPHID})
	if err != nil {
		var cerr *conduit.Error
		if errors.As(err, &cerr) && cerr.Unsupported() {
			logger.Debug().Err(err).Msg("install has no build system")
		} else {
			logger.Warn().Err(err).Msg("build status unavailable")
		}
		return nil
	}
	if len(buildables) == 0 {
		return nil
	}
	b := buildables[0]
	switch b.Status {
	case conduit.BuildablePassed:
		p.Console.Okayf("BUILDS PASSED", "Harbormaster builds for the active diff completed successfully.")
		return nil
	case conduit.BuildableBuilding:
		p.Console.Warnf("BUILDS ONGOING", "Harbormaster is still building the active diff for this revision:")
		p.printBuilds(ctx, b.PHID)
		return p.confirm("Push revision anyway, despite ongoing build?")
	case conduit.BuildableFailed:
		p.Console.Failf("BUILD FAILURES", "Harbormaster failed to build the active diff for this revision:")
		p.printBuilds(ctx, b.PHID)
		return p.confirm("Push revision anyway, despite failed builds?")
	default:
		logger.Debug().Str("status", b.Status).Msg("unrecognized buildable status")
		return nil
	}
}

func (p *Push) printBuilds(ctx context.Context, buildablePHID string) {
	p.Console.Printf("\n")
	builds, err := p.Conduit.QueryBuilds(ctx, []string{buildablePHID})
	if err != nil {
		logger.Warn().Err(err).Msg("build details unavailable")
	}
	for _, b := range builds {
		p.Console.BuildLine(b.ID.String(), b.Status, b.Name)
	}
	p.Console.Printf("\n")
}

// publish amends the commit to the canonical message and pushes the
// branch, through the Subversion bridge when one is present.
func (p *Push) publish(ctx context.Context) error {
	if !p.NoAmend {
		if err := p.Amender.AmendCommit(ctx, p.rev.ID, p.message); err != nil {
			return fmt.Errorf("amending commit message for %s: %w", p.rev.Name(), err)
		}
	}
	p.Console.Printf("Pushing revision '%s'...\n", p.rev.Display())
	var err error
	if p.Git.Bridged() {
		err = p.Git.Dcommit()
	} else {
		err = p.Git.Push(p.remote, p.Branch)
	}
	if err != nil {
		p.Console.Printf("%v\n", err)
		p.Console.Failf("PUSH FAILED!", "Fix the problem and run 'arc push' again.")
		return Usagef("Pushing %s '%s' to '%s' failed.", p.kind, p.Branch, p.remote)
	}
	return nil
}

// notify hints that the repository should be pulled for new commits.
// The hint is advisory and failures are ignored.
func (p *Push) notify(ctx context.Context) {
	callsign := p.Config.Callsign()
	if callsign == "" {
		return
	}
	if err := p.Conduit.Looksoon(ctx, []string{callsign}); err != nil {
		logger.Warn().Err(err).Msg("diffusion.looksoon failed")
	}
}

func (p *Push) finalize(ctx context.Context) error {
	if err := p.Closer.FinalizeRevision(ctx, p.rev.ID); err != nil {
		return fmt.Errorf("closing revision %s: %w", p.rev.Name(), err)
	}
	return nil
}

// restore returns the working copy to the branch that was checked out
// when the workflow started and resynchronizes submodules. Restore
// problems are reported but never mask the error that led here.
func (p *Push) restore() {
	if p.prior == "" {
		return
	}
	if err := p.Git.Checkout(p.prior); err != nil {
		p.Console.Printf("Unable to restore %s '%s': %v\n", p.kind, p.prior, err)
		return
	}
	if err := p.Git.SubmoduleUpdate(); err != nil {
		p.Console.Printf("Unable to synchronize submodules: %v\n", err)
	}
	p.Console.Printf("Switched back to %s '%s'.\n", p.kind, p.prior)
}

func (p *Push) confirm(format string, args ...any) error {
	ok, err := p.Console.Confirm(format, args...)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserAbort
	}
	return nil
}
