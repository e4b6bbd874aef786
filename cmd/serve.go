package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/app"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot (webhook server or long polling, per telegram.mode)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if mode, _ := cmd.Flags().GetString("mode"); mode != "" {
				if mode != "webhook" && mode != "polling" {
					return fmt.Errorf("invalid --mode=%q", mode)
				}
				cfg.Telegram.Mode = mode
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, log, cfg)
			if err != nil {
				log.Error("Failed to initialize app", "error", err)
				log.Sync()
				return err
			}
			defer a.Close()

			if err := a.Run(ctx); err != nil {
				log.Error("Bot stopped with error", "error", err)
				return err
			}
			log.Info("Bot stopped")
			return nil
		},
	}
	cmd.Flags().String("mode", "", "Override telegram.mode: webhook or polling.")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the state tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()
			return app.Migrate(log, cfg)
		},
	}
}

func newSetCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-commands",
		Short: "Register the bot command menu with Telegram",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()
			return app.SetCommands(cmd.Context(), log, cfg)
		},
	}
}
