// Copyright 2024 The Arcanist Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package workflow

import (
	"context"
	"strings"

	"github.com/wangkun611/arcanist/internal/conduit"
	"github.com/wangkun611/arcanist/internal/console"
)

// Todo files a quick tracking task owned by the caller.
type Todo struct {
	Conduit *conduit.Client
	Console *console.Console

	Summary  []string // positional words, joined into the task title
	CCs      []string // usernames to subscribe
	Projects []string // project names to tag
}

// Run creates the task.
func (t *Todo) Run(ctx context.Context) error {
	title := strings.TrimSpace(strings.Join(t.Summary, " "))
	if title == "" {
		return Usagef("Provide a summary of the task you want to create.")
	}

	var ccPHIDs []string
	if len(t.CCs) > 0 {
		users, err := t.Conduit.QueryUsers(ctx, t.CCs, nil)
		if err != nil {
			return err
		}
		byName := make(map[string]string, len(users))
		for _, u := range users {
			byName[strings.ToLower(u.UserName)] = u.PHID
		}
		for _, name := range t.CCs {
			phid, ok := byName[strings.ToLower(name)]
			if !ok {
				return Usagef("No such user '%s'.", name)
			}
			ccPHIDs = append(ccPHIDs, phid)
		}
	}

	var projectPHIDs []string
	if len(t.Projects) > 0 {
		projects, err := t.Conduit.QueryProjects(ctx, t.Projects)
		if err != nil {
			return err
		}
		for _, name := range t.Projects {
			phid := matchProject(projects, name)
			if phid == "" {
				return Usagef("No such project '%s'.", name)
			}
			projectPHIDs = append(projectPHIDs, phid)
		}
	}

	me, err := t.Conduit.WhoAmI(ctx)
	if err != nil {
		return err
	}
	task, err := t.Conduit.CreateTask(ctx, title, me.PHID, ccPHIDs, projectPHIDs)
	if err != nil {
		return err
	}
	t.Console.Printf("Created task: T%s '%s' at %s\n", task.ID.String(), task.Title, task.URI)
	return nil
}

// matchProject finds a project by name or slug, ignoring case.
func matchProject(projects []*conduit.Project, name string) string {
	lower := strings.ToLower(name)
	for _, p := range projects {
		if strings.ToLower(p.Name) == lower {
			return p.PHID
		}
		for _, slug := range p.Slugs {
			if strings.ToLower(slug) == lower {
				return p.PHID
			}
		}
	}
	return ""
}
