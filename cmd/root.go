package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/app"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "wewall-bot",
		Short:         "WEWALL commercial real estate Telegram assistant",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().String("config", "", "Config file path (defaults to BOT_CONFIG_PATH or ./config/config.yaml).")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newSetCommandsCmd())
	return cmd
}

// loadConfig resolves --config first, then BOT_CONFIG_PATH and the default location.
func loadConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	var (
		cfg *config.Config
		err error
	)
	if p := strings.TrimSpace(path); p != "" {
		cfg, err = config.LoadFile(p)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}
	log, err := app.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
