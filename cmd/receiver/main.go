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
	"github.com/relabs-tech/swingsense/internal/logging"
)

func main() {
	rc := app.ReceiverConfig{}
	var logLevel string

	cmd := &cobra.Command{
		Use:   "receiver",
		Short: "Print SwingSense frames from BLE, MQTT or the websocket monitor and save sessions as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.Setup(logLevel, "text", nil); err != nil {
				return err
			}
			return app.RunReceiver(cmd.Context(), rc, cmd.OutOrStdout())
		},
		SilenceUsage: true,
	}
	f := cmd.Flags()
	f.StringVar(&rc.Source, "source", app.SourceBLE, "frame source: ble, mqtt or ws")
	f.StringVar(&rc.Name, "name", "SwingSense", "BLE device name to scan for")
	f.StringVar(&rc.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	f.StringVar(&rc.Topic, "topic", "swingsense/imu", "MQTT data topic")
	f.StringVar(&rc.ClientID, "client-id", "swingsense-receiver", "MQTT client id")
	f.StringVar(&rc.URL, "url", "ws://localhost:8080/ws", "websocket monitor URL")
	f.StringVar(&rc.SessionDir, "sessions", "", "directory for session CSV files (empty disables recording)")
	f.StringVar(&logLevel, "log-level", "info", "log level")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := cmd.ExecuteContext(ctx); err != nil {
		logrus.WithError(err).Error("fatal")
		cancel()
		os.Exit(1)
	}
}
