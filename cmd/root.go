package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warprun/internal/config"
	"github.com/BioHazard786/Warprun/internal/logging"
	"github.com/BioHazard786/Warprun/internal/sandbox"
	"github.com/BioHazard786/Warprun/internal/ui"
	"github.com/BioHazard786/Warprun/internal/version"
)

var (
	v = config.New()

	flagConfig string

	// Set by PersistentPreRunE for every command.
	cfg    *config.Config
	logger zerolog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "warprun",
	Short: "Run code on a peer's machine over a direct WebRTC connection",
	Long: `Warprun connects two machines through a signaling relay and a direct
WebRTC data channel, then lets either side run JavaScript or Python on the
other. Code runs in a sandbox with a time limit.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(v, flagConfig)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = logging.Init(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}

// newSandbox builds the executor for this process from the config.
func newSandbox() *sandbox.Sandbox {
	policy := sandbox.Policy{
		Timeout:        cfg.Sandbox.Timeout,
		MaxOutputBytes: cfg.Sandbox.MaxOutputBytes,
		TempDir:        cfg.Sandbox.TempDir,
	}
	locator := sandbox.NewPathLocator(cfg.Sandbox.Interpreters)
	return sandbox.NewDefault(policy, locator, logger.With().Str("component", "sandbox").Logger())
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVarP(&flagConfig, "config", "c", "", "Config file (default ./warprun.yaml or ~/.warprun/warprun.yaml)")
	flags.String("domain", "", "Signaling relay domain")
	flags.StringP("stun", "s", "", "Custom STUN server")
	flags.StringP("turn", "t", "", "Custom TURN server")
	flags.String("turn-user", "", "TURN username")
	flags.String("turn-pass", "", "TURN password")
	flags.BoolP("relay", "r", false, "Force relay mode")
	flags.Duration("timeout", config.DefaultTimeout, "Execution time limit")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")

	bindings := map[string]string{
		"signaling.domain":  "domain",
		"ice.stun_server":   "stun",
		"ice.turn_server":   "turn",
		"ice.turn_username": "turn-user",
		"ice.turn_password": "turn-pass",
		"ice.force_relay":   "relay",
		"sandbox.timeout":   "timeout",
		"log.level":         "log-level",
	}
	for key, name := range bindings {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
}
