package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/sprintdeck/sprintdeck/internal/board"
)

func newBoardCmd() *cobra.Command {
	var (
		configPath string
		port       int
		workspace  string
	)

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Start the read-only sprint board",
		Long:  "Launches a local web view of a workspace's sprint with live task updates.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoard(cmd, configPath, port, workspace)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sprintdeck.yaml", "path to config file")
	cmd.Flags().IntVarP(&port, "port", "p", 8081, "port to listen on")
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "local", "workspace id")
	return cmd
}

func runBoard(cmd *cobra.Command, configPath string, port int, workspace string) error {
	_, gdb, err := openDB(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	return board.Start(ctx, board.StartOpts{
		DB:        gdb,
		Port:      port,
		Workspace: workspace,
		Out:       cmd.OutOrStdout(),
	})
}
