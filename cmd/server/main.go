package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warprun/internal/config"
	"github.com/BioHazard786/Warprun/internal/logging"
	"github.com/BioHazard786/Warprun/internal/relay"
	"github.com/BioHazard786/Warprun/internal/server"
	"github.com/BioHazard786/Warprun/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	var configFile string

	cmd := &cobra.Command{
		Use:           "warprun-relay",
		Short:         "Signaling relay for warprun peers",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Config file")
	cmd.Flags().String("addr", ":8080", "Listen address")
	cmd.Flags().String("log-level", "", "Log level (debug, info, warn, error)")
	_ = v.BindPFlag("relay.addr", cmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("log.level", cmd.Flags().Lookup("log-level"))

	return cmd
}

func run(cfg *config.Config) error {
	log := logging.Init(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	hub := relay.NewHub(log.With().Str("component", "hub").Logger())
	srv := server.New(hub, server.ClientOptions(cfg.Relay), log.With().Str("component", "http").Logger())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(cfg.Relay.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return srv.Shutdown(context.Background())
}
