// Command yasbit runs a Bitcoin block-synchronization node: it discovers
// peers, elects a sync peer, and downloads and validates blocks into a local
// append-only store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"yasbit/core"
	"yasbit/pkg/config"
)

func main() {
	rootCmd := &cobra.Command{Use: "yasbit"}
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(statsCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func configCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "print the resolved configuration as yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(env)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment-specific config overlay (merged over config/default.yaml)")
	return cmd
}

func runCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "connect to the network and sync the block chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(env)
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment-specific config overlay (merged over config/default.yaml)")
	return cmd
}

func statsCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "print chain tip and stored metadata keys from the local data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(env)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := core.NewFileStore(cfg.Storage.DataDir, 4096)
			if err != nil {
				return fmt.Errorf("open block store: %w", err)
			}
			defer store.Close()

			tip, ok, err := store.Tip()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ok {
				fmt.Fprintf(out, "tip: %s\n", tip.DisplayString())
			} else {
				fmt.Fprintln(out, "tip: (none)")
			}

			keys, err := store.MetadataKeys(nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "metadata keys: %d\n", len(keys))
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment-specific config overlay (merged over config/default.yaml)")
	return cmd
}

func runNode(env string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg)

	store, err := core.NewFileStore(cfg.Storage.DataDir, 4096)
	if err != nil {
		return fmt.Errorf("open block store: %w", err)
	}
	defer store.Close()

	val := core.NewValidator(store, time.Duration(cfg.Sync.ValidatorTimeoutSec)*time.Second, nil, nil, log.WithField("component", "validator"))

	coordCfg := core.CoordinatorConfig{
		Magic:                cfg.Network.Magic,
		Port:                 cfg.Network.Port,
		DNSSeeds:             cfg.Network.DNSSeeds,
		PeersNumber:          cfg.Network.PeersNumber,
		MaxDownloadingBlocks: cfg.Sync.MaxDownloadingBlocks,
		MaxHeaders:           cfg.Sync.MaxHeaders,
		DownloadQueueCap:     cfg.Sync.DownloadQueueCap,
	}
	coord := core.NewCoordinator(coordCfg, store, val, log.WithField("component", "coordinator"))

	if cfg.Network.EnableNATMap {
		maybeMapPort(cfg, log)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("yasbit: shutting down")
		cancel()
	}()

	go val.Run(ctx)

	log.WithFields(logrus.Fields{
		"network": cfg.Network.Name,
		"port":    cfg.Network.Port,
	}).Info("yasbit: starting sync")
	coord.Run(ctx)
	return nil
}

// maybeMapPort asks the gateway to forward the node's listen port; failures
// are logged and otherwise ignored, since NAT traversal is a best-effort
// convenience and not required for outbound-only sync.
func maybeMapPort(cfg *config.Config, log *logrus.Entry) {
	nat, err := core.NewNATManager()
	if err != nil {
		log.WithError(err).Debug("yasbit: no NAT gateway found")
		return
	}
	port := cfg.Network.Port
	if cfg.Network.ListenAddr != "" {
		if p, err := core.ParseListenPort(cfg.Network.ListenAddr); err == nil {
			port = p
		}
	}
	if err := nat.Map(port); err != nil {
		log.WithError(err).Warn("yasbit: port mapping failed")
		return
	}
	log.WithField("external_ip", nat.ExternalIP()).Info("yasbit: mapped listen port via NAT gateway")
}

func newLogger(cfg *config.Config) *logrus.Entry {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			logger.SetOutput(f)
		}
	}
	return logrus.NewEntry(logger)
}
