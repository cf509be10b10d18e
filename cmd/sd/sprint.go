package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/sprintdeck/sprintdeck/internal/sprint"
)

func newSprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sprint",
		Short: "Sprint management commands",
	}

	cmd.AddCommand(newSprintStartCmd())
	cmd.AddCommand(newSprintEndCmd())
	cmd.AddCommand(newSprintStatusCmd())
	return cmd
}

func newSprintStartCmd() *cobra.Command {
	var (
		configPath string
		user       string
		workspace  string
		name       string
		capacity   int
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a new sprint",
		Long:  "Starts a new ACTIVE sprint, closing any currently active one in the workspace.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gdb, err := openDB(configPath)
			if err != nil {
				return err
			}
			started, err := sprint.Start(gdb, sprint.StartOpts{
				WorkspaceID:    workspace,
				Name:           name,
				CapacityPoints: capacity,
				ActorID:        user,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Started %s %q with capacity %d\n",
				started.ID, started.Name, started.CapacityPoints)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sprintdeck.yaml", "path to config file")
	principalFlags(cmd, &user, &workspace)
	cmd.Flags().StringVarP(&name, "name", "n", "", "sprint name (required)")
	cmd.Flags().IntVarP(&capacity, "capacity", "p", 0, "point capacity (required)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("capacity")
	return cmd
}

func newSprintEndCmd() *cobra.Command {
	var (
		configPath string
		user       string
		workspace  string
	)

	cmd := &cobra.Command{
		Use:   "end",
		Short: "End the active sprint",
		Long:  "Closes the active sprint and returns its unfinished tasks to the backlog.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gdb, err := openDB(configPath)
			if err != nil {
				return err
			}
			closed, err := sprint.End(gdb, workspace, user)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ended %s %q\n", closed.ID, closed.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sprintdeck.yaml", "path to config file")
	principalFlags(cmd, &user, &workspace)
	return cmd
}

func newSprintStatusCmd() *cobra.Command {
	var (
		configPath string
		user       string
		workspace  string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active sprint's committed points and task counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gdb, err := openDB(configPath)
			if err != nil {
				return err
			}
			summary, err := sprint.GetSummary(gdb, workspace)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %q: %d/%d points committed (%d free)\n",
				summary.Sprint.ID, summary.Sprint.Name,
				summary.CommittedPoints, summary.Sprint.CapacityPoints, summary.RemainingPoints)
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STATUS\tCOUNT")
			for _, sc := range summary.StatusCounts {
				fmt.Fprintf(w, "%s\t%d\n", sc.Status, sc.Count)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sprintdeck.yaml", "path to config file")
	principalFlags(cmd, &user, &workspace)
	return cmd
}
