// Copyright 2024 The Arcanist Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package workflow

import (
	"context"

	"github.com/wangkun611/arcanist/internal/conduit"
	"github.com/wangkun611/arcanist/internal/console"
)

// CloseRevision marks a revision closed on the remote install. It also
// serves as the push workflow's close child operation.
type CloseRevision struct {
	Conduit *conduit.Client
	Console *console.Console

	Revision string // positional argument, "D123" or "123"
	Finalize bool   // close only if accepted, do nothing otherwise
	Quiet    bool   // suppress output
}

// Run closes the named revision.
func (c *CloseRevision) Run(ctx context.Context) error {
	if c.Revision == "" {
		return Usagef("Specify a revision to close, like 'arc close-revision D123'.")
	}
	id, err := parseRevisionArg(c.Revision)
	if err != nil {
		return err
	}
	return c.close(ctx, id, c.Finalize, c.Quiet)
}

// FinalizeRevision implements the push workflow's close child operation
// with finalize semantics: close only when accepted, and say nothing.
func (c *CloseRevision) FinalizeRevision(ctx context.Context, revisionID int) error {
	return c.close(ctx, revisionID, true, true)
}

func (c *CloseRevision) close(ctx context.Context, id int, finalize, quiet bool) error {
	revs, err := c.Conduit.QueryRevisions(ctx, conduit.RevisionQuery{IDs: []int{id}})
	if err != nil {
		return err
	}
	if len(revs) == 0 {
		return Usagef("Revision 'D%d' does not exist.", id)
	}
	rev := revs[0]
	if !rev.Open() {
		if finalize {
			return nil
		}
		return Usagef("Revision '%s' is already closed.", rev.Display())
	}
	if finalize && !rev.Accepted() {
		// Finalize closes accepted revisions only. Anything else is
		// left for the commit daemon to pick up.
		return nil
	}
	if err := c.Conduit.CloseRevision(ctx, id); err != nil {
		return err
	}
	if !quiet {
		c.Console.Printf("Closed revision '%s'.\n", rev.Display())
	}
	return nil
}
