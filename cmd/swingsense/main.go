// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/swingsense/internal/app"
	"github.com/relabs-tech/swingsense/internal/config"
	"github.com/relabs-tech/swingsense/internal/logging"
)

func main() {
	var configPath string

	loadConfig := func() (*config.Config, error) {
		if err := config.InitGlobal(configPath); err != nil {
			return nil, err
		}
		cfg := config.Get()
		if err := logging.Setup(cfg.LogLevel, cfg.LogFormat, nil); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	root := &cobra.Command{
		Use:   "swingsense",
		Short: "SwingSense wearable: IMU sampling, toggle-switch recording, BLE streaming",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logrus.WithField("config", configPath).Info("starting swingsense")
			return app.RunDevice(cmd.Context(), cfg)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "./swingsense_config.txt", "path to configuration file")

	run := &cobra.Command{
		Use:   "run",
		Short: "Run the wearable (default)",
		RunE:  root.RunE,
	}

	var inspect app.InspectOptions
	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Initialize the IMU, dump its registers and print a few samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return app.RunInspect(cfg, inspect, cmd.OutOrStdout())
		},
		SilenceUsage: true,
	}
	inspectCmd.Flags().IntVar(&inspect.Samples, "samples", 10, "samples to print after the register dump")
	inspectCmd.Flags().BoolVar(&inspect.JSON, "json", false, "dump registers as JSON")

	root.AddCommand(run, inspectCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := root.ExecuteContext(ctx); err != nil {
		logrus.WithError(err).Error("fatal")
		cancel()
		os.Exit(1)
	}
}
