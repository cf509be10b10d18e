package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/sprintdeck/sprintdeck/internal/config"
	"github.com/sprintdeck/sprintdeck/internal/db"
	"github.com/sprintdeck/sprintdeck/internal/notify"
	"github.com/sprintdeck/sprintdeck/internal/server"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Sprintdeck API server",
		Long:  "Starts the HTTP API and the periodic routine/due-date scan. Stops on SIGINT/SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sprintdeck.yaml", "path to config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	cfg, gdb, err := openDB(configPath)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gdb); err != nil {
		return err
	}

	sinks, err := buildSinks(cfg)
	if err != nil {
		return err
	}
	hub := notify.NewHub(notify.HubOpts{
		DB:          gdb,
		DefaultLow:  cfg.Automation.DefaultLow,
		DefaultHigh: cfg.Automation.DefaultHigh,
		Sinks:       sinks,
	})
	defer hub.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Sprintdeck API on :%d (%s database)\n",
		cfg.Server.Port, cfg.Database.Driver)

	errCh := make(chan error, 2)
	go func() {
		errCh <- server.Start(ctx, server.StartOpts{DB: gdb, Hub: hub, Port: cfg.Server.Port})
	}()
	go func() {
		errCh <- server.StartScan(ctx, gdb, hub, cfg.Server.RoutineScanCron)
	}()

	err = <-errCh
	stop()
	<-errCh
	return err
}

// buildSinks creates chat sinks for every configured platform.
func buildSinks(cfg *config.Config) ([]notify.Sink, error) {
	var sinks []notify.Sink
	if cfg.Notify.Slack.BotToken != "" {
		s, err := notify.NewSlackSink(notify.SlackOpts{
			BotToken: cfg.Notify.Slack.BotToken,
			Channel:  cfg.Notify.Slack.Channel,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if cfg.Notify.Discord.BotToken != "" {
		d, err := notify.NewDiscordSink(notify.DiscordOpts{
			BotToken: cfg.Notify.Discord.BotToken,
			Channel:  cfg.Notify.Discord.Channel,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, d)
	}
	return sinks, nil
}
