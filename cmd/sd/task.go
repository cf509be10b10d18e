package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/sprintdeck/sprintdeck/internal/models"
	"github.com/sprintdeck/sprintdeck/internal/task"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Task management commands",
	}

	cmd.AddCommand(newTaskAddCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskShowCmd())
	cmd.AddCommand(newTaskMoveCmd())
	cmd.AddCommand(newTaskPointsCmd())
	cmd.AddCommand(newTaskDepCmd())
	cmd.AddCommand(newTaskReadyCmd())
	cmd.AddCommand(newTaskDeleteCmd())
	return cmd
}

// principalFlags adds the acting-user and workspace flags shared by all
// task and sprint commands. The CLI plays the role of the identity and
// workspace resolvers.
func principalFlags(cmd *cobra.Command, user, workspace *string) {
	cmd.Flags().StringVar(user, "user", "cli", "acting user id")
	cmd.Flags().StringVarP(workspace, "workspace", "w", "local", "workspace id")
}

func newTaskAddCmd() *cobra.Command {
	var (
		configPath  string
		user        string
		workspace   string
		title       string
		description string
		dod         string
		points      int
		urgency     string
		risk        string
		taskType    string
		status      string
		assignee    string
		parentID    string
		tags        []string
		deps        []string
		cadence     string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a new task",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gdb, err := openDB(configPath)
			if err != nil {
				return err
			}
			created, err := task.Create(gdb, task.CreateOpts{
				WorkspaceID:      workspace,
				CreatorID:        user,
				Title:            title,
				Description:      description,
				DefinitionOfDone: dod,
				Points:           points,
				Urgency:          urgency,
				Risk:             risk,
				Type:             taskType,
				Status:           status,
				AssigneeID:       assignee,
				ParentID:         parentID,
				Tags:             tags,
				DependencyIDs:    deps,
				Cadence:          cadence,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s: %s (%d points)\n", created.ID, created.Title, created.Points)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sprintdeck.yaml", "path to config file")
	principalFlags(cmd, &user, &workspace)
	cmd.Flags().StringVarP(&title, "title", "t", "", "task title (required)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "task description")
	cmd.Flags().StringVar(&dod, "dod", "", "definition of done")
	cmd.Flags().IntVarP(&points, "points", "p", 1, "story points (1,2,3,5,8,13,21,34)")
	cmd.Flags().StringVar(&urgency, "urgency", "", "LOW, MEDIUM, or HIGH")
	cmd.Flags().StringVar(&risk, "risk", "", "LOW, MEDIUM, or HIGH")
	cmd.Flags().StringVar(&taskType, "type", "", "EPIC, PBI, TASK, or ROUTINE")
	cmd.Flags().StringVar(&status, "status", "", "BACKLOG (default) or SPRINT")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee user id")
	cmd.Flags().StringVar(&parentID, "parent", "", "parent task id")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "comma-separated tags")
	cmd.Flags().StringSliceVar(&deps, "deps", nil, "comma-separated dependency task ids")
	cmd.Flags().StringVar(&cadence, "cadence", "", "DAILY or WEEKLY (ROUTINE tasks)")
	cmd.MarkFlagRequired("title")
	return cmd
}

func newTaskListCmd() *cobra.Command {
	var (
		configPath string
		user       string
		workspace  string
		status     string
		taskType   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gdb, err := openDB(configPath)
			if err != nil {
				return err
			}
			tasks, err := task.List(gdb, workspace, task.ListFilters{
				Status: status,
				Type:   taskType,
			})
			if err != nil {
				return err
			}
			printTasks(cmd, tasks)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sprintdeck.yaml", "path to config file")
	principalFlags(cmd, &user, &workspace)
	cmd.Flags().StringVarP(&status, "status", "s", "", "filter by status")
	cmd.Flags().StringVar(&taskType, "type", "", "filter by type")
	return cmd
}

func newTaskShowCmd() *cobra.Command {
	var (
		configPath string
		user       string
		workspace  string
	)

	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gdb, err := openDB(configPath)
			if err != nil {
				return err
			}
			t, err := task.Get(gdb, workspace, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s\n", t.ID, t.Title)
			fmt.Fprintf(out, "  status=%s type=%s points=%d urgency=%s risk=%s\n",
				t.Status, t.Type, t.Points, t.Urgency, t.Risk)
			if t.SprintID != nil {
				fmt.Fprintf(out, "  sprint=%s\n", *t.SprintID)
			}
			if t.DueDate != nil {
				fmt.Fprintf(out, "  due=%s\n", t.DueDate.Format("2006-01-02"))
			}
			if len(t.Deps) > 0 {
				ids := make([]string, len(t.Deps))
				for i, d := range t.Deps {
					ids[i] = d.DependsOnID
				}
				fmt.Fprintf(out, "  depends on: %s\n", strings.Join(ids, ", "))
			}
			for _, item := range t.Checklist {
				mark := " "
				if item.Done {
					mark = "x"
				}
				fmt.Fprintf(out, "  [%s] %s\n", mark, item.Text)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sprintdeck.yaml", "path to config file")
	principalFlags(cmd, &user, &workspace)
	return cmd
}

func newTaskMoveCmd() *cobra.Command {
	var (
		configPath string
		user       string
		workspace  string
	)

	cmd := &cobra.Command{
		Use:   "move <task-id> <BACKLOG|SPRINT|DONE>",
		Short: "Change a task's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gdb, err := openDB(configPath)
			if err != nil {
				return err
			}
			status := strings.ToUpper(args[1])
			result, err := task.Update(gdb, workspace, args[0], user, task.Patch{Status: &status})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s → %s\n", result.Task.ID, result.Task.Status)
			if result.Successor != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Routine successor %s due %s\n",
					result.Successor.ID, result.Successor.DueDate.Format("2006-01-02"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sprintdeck.yaml", "path to config file")
	principalFlags(cmd, &user, &workspace)
	return cmd
}

func newTaskPointsCmd() *cobra.Command {
	var (
		configPath string
		user       string
		workspace  string
		points     int
	)

	cmd := &cobra.Command{
		Use:   "points <task-id>",
		Short: "Change a task's story points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gdb, err := openDB(configPath)
			if err != nil {
				return err
			}
			result, err := task.Update(gdb, workspace, args[0], user, task.Patch{Points: &points})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now %d points\n", result.Task.ID, result.Task.Points)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sprintdeck.yaml", "path to config file")
	principalFlags(cmd, &user, &workspace)
	cmd.Flags().IntVarP(&points, "points", "p", 0, "new story points (required)")
	cmd.MarkFlagRequired("points")
	return cmd
}

func newTaskDepCmd() *cobra.Command {
	var (
		configPath string
		user       string
		workspace  string
	)

	cmd := &cobra.Command{
		Use:   "dep <task-id> [dep-id...]",
		Short: "Replace a task's dependency set",
		Long:  "Replaces the task's full dependency list with the given ids; no ids clears it.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gdb, err := openDB(configPath)
			if err != nil {
				return err
			}
			deps := args[1:]
			result, err := task.Update(gdb, workspace, args[0], user, task.Patch{DependencyIDs: &deps})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s depends on %d task(s)\n", result.Task.ID, len(deps))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sprintdeck.yaml", "path to config file")
	principalFlags(cmd, &user, &workspace)
	return cmd
}

func newTaskReadyCmd() *cobra.Command {
	var (
		configPath string
		user       string
		workspace  string
	)

	cmd := &cobra.Command{
		Use:   "ready",
		Short: "List backlog tasks whose dependencies are all done",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gdb, err := openDB(configPath)
			if err != nil {
				return err
			}
			tasks, err := task.ListReady(gdb, workspace)
			if err != nil {
				return err
			}
			printTasks(cmd, tasks)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sprintdeck.yaml", "path to config file")
	principalFlags(cmd, &user, &workspace)
	return cmd
}

func newTaskDeleteCmd() *cobra.Command {
	var (
		configPath string
		user       string
		workspace  string
	)

	cmd := &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task and its dependent records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gdb, err := openDB(configPath)
			if err != nil {
				return err
			}
			if err := task.Delete(gdb, workspace, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sprintdeck.yaml", "path to config file")
	principalFlags(cmd, &user, &workspace)
	return cmd
}

func printTasks(cmd *cobra.Command, tasks []models.Task) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tTYPE\tPTS\tTITLE")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", t.ID, t.Status, t.Type, t.Points, t.Title)
	}
	w.Flush()
}
