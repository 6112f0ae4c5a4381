package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/dwn/pkg/dwn"
	"github.com/cuemby/dwn/pkg/log"
	"github.com/cuemby/dwn/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open a DWN instance and block until interrupted",
	Long: `Serve opens the DWN's on-disk state at --data-dir and keeps it
resident so its background task sweeper keeps running. It does not expose
a network transport of its own; embedders drive ProcessMessage directly.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("data-dir", "./dwn-data", "Data directory for DWN state")
	serveCmd.Flags().String("keys", "", "YAML file of known DIDs and their public keys (required)")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the metrics/health HTTP server")
	_ = serveCmd.MarkFlagRequired("keys")
}

func runServe(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	keysPath, _ := cmd.Flags().GetString("keys")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	resolver, err := loadResolver(keysPath)
	if err != nil {
		return fmt.Errorf("failed to load keys: %w", err)
	}

	metrics.RegisterComponent("kv", false, "opening")
	metrics.RegisterComponent("tasks", false, "opening")

	d, err := dwn.Open(dataDir, resolver)
	if err != nil {
		return fmt.Errorf("failed to open dwn: %w", err)
	}
	metrics.RegisterComponent("kv", true, "ready")
	metrics.RegisterComponent("tasks", true, "ready")

	l := log.WithComponent("dwn-serve")

	go func() {
		http.Handle("/metrics", metrics.Handler())
		http.Handle("/health", metrics.HealthHandler())
		http.Handle("/ready", metrics.ReadyHandler())
		http.Handle("/live", metrics.LivenessHandler())
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			l.Error().Err(err).Msg("metrics server error")
		}
	}()
	l.Info().Str("dataDir", dataDir).Str("metricsAddr", metricsAddr).Msg("dwn open, waiting for interrupt")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info().Msg("shutting down")
	if err := d.Close(); err != nil {
		return fmt.Errorf("failed to close dwn: %w", err)
	}
	return nil
}
