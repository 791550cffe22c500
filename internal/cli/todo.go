// Copyright 2024 The Arcanist Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"github.com/spf13/cobra"

	"github.com/wangkun611/arcanist/internal/workflow"
)

var (
	todoCCs      []string
	todoProjects []string
)

var todoCmd = &cobra.Command{
	Use:   "todo <summary>...",
	Short: "File a quick tracking task",
	Long: `File a quick tracking task.

The positional words become the task title and the task is assigned to
you. Tasks created this way are meant as reminders; use the web UI for
anything that needs a real description.`,
	RunE: runTodo,
}

func init() {
	rootCmd.AddCommand(todoCmd)

	todoCmd.Flags().StringSliceVar(&todoCCs, "cc", nil, "subscribe these usernames to the task")
	todoCmd.Flags().StringSliceVar(&todoProjects, "project", nil, "tag the task with these projects")
}

func runTodo(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	t := &workflow.Todo{
		Conduit:  e.conduit,
		Console:  e.console,
		Summary:  args,
		CCs:      todoCCs,
		Projects: todoProjects,
	}
	return t.Run(cmd.Context())
}
